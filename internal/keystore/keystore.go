// Package keystore keeps answer keys that teachers saved under a subject
// name so they can be reused for later sheets.
//
// A key is identified by its owner, subject and question count; saving a
// key under an existing identity replaces it. Keys are stored in canonical
// form (see answerkey.Normalize).
package keystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Gowithe/scangrade-thai/internal/answerkey"
)

// ErrNotFound is returned by Get when no key is saved under the identity.
var ErrNotFound = errors.New("saved key not found")

// ErrInvalidKey is returned when a key fails validation.
var ErrInvalidKey = errors.New("invalid saved key")

var validate = validator.New(validator.WithRequiredStructEnabled())

// SavedKey is one stored answer key.
type SavedKey struct {
	Owner         string    `json:"owner" db:"owner" validate:"required,max=128"`
	Subject       string    `json:"subject" db:"subject" validate:"required,max=128"`
	QuestionCount int       `json:"question_count" db:"question_count" validate:"min=1,max=1000"`
	Key           string    `json:"key" db:"key_str"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Subject is a saved subject name with the time its key last changed.
type Subject struct {
	Name      string    `json:"subject" db:"subject"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Store persists saved keys.
type Store interface {
	// Upsert saves k, replacing any key with the same identity. The key
	// string is normalized before it is stored.
	Upsert(ctx context.Context, k SavedKey) (SavedKey, error)

	// Get returns the key saved under the identity, or ErrNotFound.
	Get(ctx context.Context, owner, subject string, questionCount int) (SavedKey, error)

	// ListSubjects returns the owner's subjects for the question count,
	// most recently updated first.
	ListSubjects(ctx context.Context, owner string, questionCount int) ([]Subject, error)
}

// prepare trims and validates k and normalizes its key string.
func prepare(k SavedKey) (SavedKey, error) {
	k.Owner = strings.TrimSpace(k.Owner)
	k.Subject = strings.TrimSpace(k.Subject)
	if err := validate.Struct(k); err != nil {
		return SavedKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	k.Key = answerkey.Normalize(k.Key, k.QuestionCount)
	if k.Key == "" {
		return SavedKey{}, fmt.Errorf("%w: key has no answers", ErrInvalidKey)
	}
	return k, nil
}
