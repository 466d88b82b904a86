package keystore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type identity struct {
	owner   string
	subject string
	n       int
}

// Memory is a Store held in process memory. It is used when no database is
// configured and in tests.
type Memory struct {
	mu   sync.RWMutex
	keys map[identity]SavedKey
	now  func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		keys: make(map[identity]SavedKey),
		now:  time.Now,
	}
}

// Upsert implements Store.
func (m *Memory) Upsert(_ context.Context, k SavedKey) (SavedKey, error) {
	k, err := prepare(k)
	if err != nil {
		return SavedKey{}, err
	}
	k.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	m.keys[identity{k.Owner, k.Subject, k.QuestionCount}] = k
	m.mu.Unlock()
	return k, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, owner, subject string, questionCount int) (SavedKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[identity{strings.TrimSpace(owner), strings.TrimSpace(subject), questionCount}]
	if !ok {
		return SavedKey{}, ErrNotFound
	}
	return k, nil
}

// ListSubjects implements Store.
func (m *Memory) ListSubjects(_ context.Context, owner string, questionCount int) ([]Subject, error) {
	owner = strings.TrimSpace(owner)

	m.mu.RLock()
	subjects := make([]Subject, 0)
	for id, k := range m.keys {
		if id.owner == owner && id.n == questionCount {
			subjects = append(subjects, Subject{Name: k.Subject, UpdatedAt: k.UpdatedAt})
		}
	}
	m.mu.RUnlock()

	sort.Slice(subjects, func(i, j int) bool {
		if !subjects[i].UpdatedAt.Equal(subjects[j].UpdatedAt) {
			return subjects[i].UpdatedAt.After(subjects[j].UpdatedAt)
		}
		return subjects[i].Name < subjects[j].Name
	})
	return subjects, nil
}
