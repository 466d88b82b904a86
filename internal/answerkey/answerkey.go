// Package answerkey converts free-form answer strings into per-question
// answer keys and back.
//
// A canonical key string holds one option letter per question, in question
// order: "ABCDA" means question 1 is A, question 2 is B and so on. Raw user
// input is case-insensitive and may contain any other characters, which are
// ignored.
package answerkey

import (
	"sort"
	"strings"
)

// Alphabet lists the option letters, in sheet order.
const Alphabet = "ABCDE"

// Options returns the option letters as separate strings.
func Options() []string {
	opts := make([]string, len(Alphabet))
	for i, r := range Alphabet {
		opts[i] = string(r)
	}
	return opts
}

// IsOption reports whether s is a single option letter.
func IsOption(s string) bool {
	return len(s) == 1 && strings.Contains(Alphabet, s)
}

// Key maps question numbers (1-based) to the expected option letter.
// Questions without an entry are not graded.
type Key map[int]string

// Len returns the number of graded questions.
func (k Key) Len() int {
	return len(k)
}

// Questions returns the graded question numbers in ascending order.
func (k Key) Questions() []int {
	qs := make([]int, 0, len(k))
	for q := range k {
		qs = append(qs, q)
	}
	sort.Ints(qs)
	return qs
}

// Normalize upper-cases raw, drops every character outside Alphabet and
// truncates the result to questionCount letters. A negative questionCount
// disables truncation.
//
// Normalize is idempotent.
func Normalize(raw string, questionCount int) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(raw))
	n := 0
	for _, r := range strings.ToUpper(raw) {
		if questionCount >= 0 && n >= questionCount {
			break
		}
		if r > 'Z' || !strings.ContainsRune(Alphabet, r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Parse builds a Key from an answer string. The string is normalized first,
// then letter i becomes the answer to question i. Letters beyond
// questionCount are ignored and questions beyond the string are absent.
func Parse(s string, questionCount int) Key {
	canonical := Normalize(s, questionCount)
	key := make(Key, len(canonical))
	for i, r := range canonical {
		key[i+1] = string(r)
	}
	return key
}

// Format serialises key as one character per question for questions
// 1..questionCount, writing placeholder for questions without an entry.
// Trailing placeholders are trimmed.
//
// For a fully specified key Parse(Format(k, n, '-'), n) equals k.
func Format(key Key, questionCount int, placeholder rune) string {
	last := 0
	for q, opt := range key {
		if q >= 1 && q <= questionCount && IsOption(opt) && q > last {
			last = q
		}
	}
	var b strings.Builder
	b.Grow(last)
	for q := 1; q <= last; q++ {
		if opt, ok := key[q]; ok && IsOption(opt) {
			b.WriteString(opt)
			continue
		}
		b.WriteRune(placeholder)
	}
	return b.String()
}
