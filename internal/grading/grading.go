package grading

import (
	"github.com/Gowithe/scangrade-thai/internal/answerkey"
	"github.com/Gowithe/scangrade-thai/internal/marks"
)

// Status is the outcome of grading one question.
type Status string

const (
	StatusCorrect Status = "correct"
	StatusWrong   Status = "wrong"
	StatusBlank   Status = "blank"
	StatusMulti   Status = "multi"
)

// Symbol returns the short mark shown on score sheets.
func (s Status) Symbol() string {
	switch s {
	case StatusCorrect:
		return "✔"
	case StatusWrong:
		return "✘"
	case StatusBlank:
		return "-"
	case StatusMulti:
		return "M"
	default:
		return "?"
	}
}

// Entry is the graded result of one question.
type Entry struct {
	Status Status `json:"status"`
	Symbol string `json:"symbol"`

	// Student is the decided answer: an option letter, marks.Multi, or empty
	// for a blank question.
	Student string `json:"student,omitempty"`
	Correct string `json:"correct"`
}

// Detail holds the graded questions keyed by question number.
type Detail map[int]Entry

// Stats aggregates a grading run.
type Stats struct {
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
	Blank   int `json:"blank"`
	Multi   int `json:"multi"`
	Total   int `json:"total"`
}

// Percent returns the share of correct answers in [0, 100], or 0 when
// nothing was graded.
func (s Stats) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) * 100 / float64(s.Total)
}

// Grade compares decided answers against key for questions 1..questionCount.
//
// Only questions present in key are graded and counted in Total. With an
// empty key nothing can be judged: Detail is empty, Blank and Multi are
// counted over all questions and Total is the number of non-blank answers.
func Grade(answers marks.AnswerSet, key answerkey.Key, questionCount int) (Detail, Stats) {
	detail := make(Detail)
	var stats Stats

	if len(key) == 0 {
		for q := 1; q <= questionCount; q++ {
			switch answers[q] {
			case "":
				stats.Blank++
			case marks.Multi:
				stats.Multi++
			}
		}
		stats.Total = questionCount - stats.Blank
		return detail, stats
	}

	for q := 1; q <= questionCount; q++ {
		want, ok := key[q]
		if !ok {
			continue
		}
		stats.Total++

		got := answers[q]
		var status Status
		switch {
		case got == "":
			status = StatusBlank
			stats.Blank++
		case got == marks.Multi:
			status = StatusMulti
			stats.Multi++
		case got == want:
			status = StatusCorrect
			stats.Correct++
		default:
			status = StatusWrong
			stats.Wrong++
		}

		detail[q] = Entry{
			Status:  status,
			Symbol:  status.Symbol(),
			Student: got,
			Correct: want,
		}
	}
	return detail, stats
}
