package omr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed grading run.
type ErrorKind string

const (
	// KindInvalidInput covers unreadable images, bad corner points, unknown
	// layouts and other caller mistakes.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindRectification means no sheet outline was found in the photo.
	KindRectification ErrorKind = "rectification_failed"

	// KindDetection means the mark detector failed or could not be reached.
	KindDetection ErrorKind = "detection_failed"

	// KindConfiguration means a template or detector could not be set up.
	KindConfiguration ErrorKind = "configuration"
)

// Error describes why a grading run failed. The cause is kept so callers
// can match package sentinels such as geometry.ErrNotFound with errors.Is.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error formats the error as "<kind>: <message>[: <cause>]".
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}
