package template

import (
	"errors"
	"fmt"
	"image"
	"io"
	"sort"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrTemplateNotFound is returned for unknown layout names and missing
	// template files.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTooFewSlots is returned when a template file has fewer slots than
	// questions × options.
	ErrTooFewSlots = errors.New("template has too few slots")
)

// Slot is one bubble position in canonical image coordinates.
type Slot struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Position identifies the question and option a slot stands for.
type Position struct {
	Question int    `json:"question"`
	Option   string `json:"option"`
}

// Template is a loaded sheet layout. Templates are shared between
// concurrent grading calls and must not be modified.
type Template struct {
	Name          string
	QuestionCount int
	Options       []string

	// Slots are sorted by ascending ID.
	Slots []Slot

	// Mapping holds the position of every mapped slot ID.
	Mapping map[int]Position

	// Header is the region of the canonical image holding the student
	// identification box. Empty when the layout has none.
	Header image.Rectangle
}

// Lookup returns the position of a slot, or false when the slot lies outside
// the declared question range.
func (t *Template) Lookup(slotID int) (Position, bool) {
	p, ok := t.Mapping[slotID]
	return p, ok
}

// SlotPosition returns the slot that stands for question q, option opt.
func (t *Template) SlotPosition(q int, opt string) (Slot, bool) {
	for _, s := range t.Slots {
		if p, ok := t.Mapping[s.ID]; ok && p.Question == q && p.Option == opt {
			return s, true
		}
	}
	return Slot{}, false
}

// BuildMapping assigns questions and options to slots by sorted slot ID: the
// k-th slot (0-based) is question k/len(options)+1, option k%len(options).
// Slots beyond questionCount questions stay unmapped.
func BuildMapping(slots []Slot, questionCount int, options []string) (map[int]Position, error) {
	if len(options) == 0 {
		return nil, errors.New("template needs at least one option")
	}
	need := questionCount * len(options)
	if len(slots) < need {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrTooFewSlots, len(slots), need)
	}

	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	mapping := make(map[int]Position, need)
	for k, s := range sorted {
		q := k/len(options) + 1
		if q > questionCount {
			break
		}
		mapping[s.ID] = Position{Question: q, Option: options[k%len(options)]}
	}
	return mapping, nil
}

// ReadSlots decodes a template file of the form
//
//	{"1": {"x": 180, "y": 600}, "2": {"x": 250, "y": 600}, ...}
//
// and returns the slots sorted by ID.
func ReadSlots(r io.Reader) ([]Slot, error) {
	var raw map[string]struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}

	slots := make([]Slot, 0, len(raw))
	for k, v := range raw {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid slot id %q: %w", k, err)
		}
		slots = append(slots, Slot{ID: id, X: v.X, Y: v.Y})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}
