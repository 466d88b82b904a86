package keystore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gowithe/scangrade-thai/internal/logging"
)

// storeContract runs the behaviour every Store must have. owner is unique
// per run so a shared database does not leak state between runs.
func storeContract(t *testing.T, s Store, owner string) {
	ctx := context.Background()

	t.Run("upsert normalizes", func(t *testing.T) {
		k, err := s.Upsert(ctx, SavedKey{Owner: owner, Subject: " Math ", QuestionCount: 5, Key: "a b c d e a b"})
		require.NoError(t, err)
		assert.Equal(t, "ABCDE", k.Key)
		assert.Equal(t, "Math", k.Subject)
		assert.False(t, k.UpdatedAt.IsZero())

		got, err := s.Get(ctx, owner, "Math", 5)
		require.NoError(t, err)
		assert.Equal(t, "ABCDE", got.Key)
		assert.Equal(t, 5, got.QuestionCount)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		_, err := s.Upsert(ctx, SavedKey{Owner: owner, Subject: "Math", QuestionCount: 5, Key: "EEEEE"})
		require.NoError(t, err)

		got, err := s.Get(ctx, owner, "Math", 5)
		require.NoError(t, err)
		assert.Equal(t, "EEEEE", got.Key)
	})

	t.Run("question count is part of identity", func(t *testing.T) {
		_, err := s.Upsert(ctx, SavedKey{Owner: owner, Subject: "Math", QuestionCount: 3, Key: "ABC"})
		require.NoError(t, err)

		five, err := s.Get(ctx, owner, "Math", 5)
		require.NoError(t, err)
		three, err := s.Get(ctx, owner, "Math", 3)
		require.NoError(t, err)
		assert.Equal(t, "EEEEE", five.Key)
		assert.Equal(t, "ABC", three.Key)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := s.Get(ctx, owner, "History", 5)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Get(ctx, owner+"-other", "Math", 5)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []SavedKey{
			{Owner: "", Subject: "Math", QuestionCount: 5, Key: "ABCDE"},
			{Owner: owner, Subject: "  ", QuestionCount: 5, Key: "ABCDE"},
			{Owner: owner, Subject: "Math", QuestionCount: 0, Key: "ABCDE"},
			{Owner: owner, Subject: "Math", QuestionCount: 5, Key: "xyz"},
		}
		for _, k := range tests {
			_, err := s.Upsert(ctx, k)
			assert.ErrorIs(t, err, ErrInvalidKey)
		}
	})

	t.Run("list subjects", func(t *testing.T) {
		_, err := s.Upsert(ctx, SavedKey{Owner: owner, Subject: "Science", QuestionCount: 5, Key: "AAAAA"})
		require.NoError(t, err)

		subjects, err := s.ListSubjects(ctx, owner, 5)
		require.NoError(t, err)
		names := make([]string, len(subjects))
		for i, sub := range subjects {
			names[i] = sub.Name
		}
		assert.ElementsMatch(t, []string{"Math", "Science"}, names)
		for i := 1; i < len(subjects); i++ {
			assert.False(t, subjects[i].UpdatedAt.After(subjects[i-1].UpdatedAt))
		}

		none, err := s.ListSubjects(ctx, owner, 80)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemory(t *testing.T) {
	storeContract(t, NewMemory(), "teacher")
}

func TestMemory_ListOrder(t *testing.T) {
	m := NewMemory()
	clock := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	ctx := context.Background()

	for _, subject := range []string{"Thai", "Math", "English"} {
		_, err := m.Upsert(ctx, SavedKey{Owner: "t", Subject: subject, QuestionCount: 60, Key: "ABCD"})
		require.NoError(t, err)
	}
	_, err := m.Upsert(ctx, SavedKey{Owner: "t", Subject: "Thai", QuestionCount: 60, Key: "DCBA"})
	require.NoError(t, err)

	subjects, err := m.ListSubjects(ctx, "t", 60)
	require.NoError(t, err)
	require.Len(t, subjects, 3)
	assert.Equal(t, "Thai", subjects[0].Name)
	assert.Equal(t, "English", subjects[1].Name)
	assert.Equal(t, "Math", subjects[2].Name)
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Upsert(ctx, SavedKey{Owner: "t", Subject: "Math", QuestionCount: 5, Key: "ABCDE"})
			assert.NoError(t, err)
			_, err = m.ListSubjects(ctx, "t", 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	subjects, err := m.ListSubjects(ctx, "t", 5)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("SCANGRADE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SCANGRADE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := OpenPostgres(ctx, url, logging.Discard())
	require.NoError(t, err)
	defer p.Close()

	// Migrate is safe to repeat.
	require.NoError(t, p.Migrate(ctx))

	storeContract(t, p, "test-"+uuid.NewString())
}
