package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	querySchema = `
		CREATE TABLE IF NOT EXISTS saved_keys (
			id             BIGSERIAL PRIMARY KEY,
			owner          TEXT NOT NULL,
			subject        TEXT NOT NULL,
			question_count INTEGER NOT NULL,
			key_str        TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_saved_keys_unique
			ON saved_keys (owner, subject, question_count);
	`

	queryUpsertKey = `
		INSERT INTO saved_keys (
			owner,
			subject,
			question_count,
			key_str,
			created_at,
			updated_at
		) VALUES (
			:owner,
			:subject,
			:question_count,
			:key_str,
			:updated_at,
			:updated_at
		)
		ON CONFLICT (owner, subject, question_count)
		DO UPDATE SET key_str = EXCLUDED.key_str, updated_at = EXCLUDED.updated_at
	`

	queryGetKey = `
		SELECT owner, subject, question_count, key_str, updated_at
		FROM saved_keys
		WHERE owner = :owner AND subject = :subject AND question_count = :question_count
	`

	queryListSubjects = `
		SELECT subject, updated_at
		FROM saved_keys
		WHERE owner = :owner AND question_count = :question_count
		ORDER BY updated_at DESC, subject ASC
	`
)

// Postgres is a Store backed by a PostgreSQL table.
type Postgres struct {
	db  *sqlx.DB
	log logrus.FieldLogger
}

// OpenPostgres connects to the database at url and creates the saved_keys
// table when it does not exist.
func OpenPostgres(ctx context.Context, url string, log logrus.FieldLogger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to key database: %w", err)
	}
	p := NewPostgres(db, log)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB, log logrus.FieldLogger) *Postgres {
	return &Postgres{db: db, log: log}
}

// Migrate creates the table and its unique index.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, querySchema); err != nil {
		return fmt.Errorf("failed to create saved_keys table: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Upsert implements Store.
func (p *Postgres) Upsert(ctx context.Context, k SavedKey) (SavedKey, error) {
	k, err := prepare(k)
	if err != nil {
		return SavedKey{}, err
	}
	k.UpdatedAt = time.Now().UTC()

	query, args, err := sqlx.Named(queryUpsertKey, k)
	if err != nil {
		return SavedKey{}, fmt.Errorf("failed to build upsert query: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, p.db.Rebind(query), args...); err != nil {
		p.log.WithFields(logrus.Fields{
			"owner":   k.Owner,
			"subject": k.Subject,
			"error":   err.Error(),
		}).Error("Database error when saving answer key")
		return SavedKey{}, err
	}
	return k, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, owner, subject string, questionCount int) (SavedKey, error) {
	argsKV := map[string]interface{}{
		"owner":          strings.TrimSpace(owner),
		"subject":        strings.TrimSpace(subject),
		"question_count": questionCount,
	}
	query, args, err := sqlx.Named(queryGetKey, argsKV)
	if err != nil {
		return SavedKey{}, fmt.Errorf("failed to build get query: %w", err)
	}

	var k SavedKey
	if err := p.db.QueryRowxContext(ctx, p.db.Rebind(query), args...).StructScan(&k); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SavedKey{}, ErrNotFound
		}
		p.log.WithField("error", err.Error()).Error("Database error when reading answer key")
		return SavedKey{}, err
	}
	return k, nil
}

// ListSubjects implements Store.
func (p *Postgres) ListSubjects(ctx context.Context, owner string, questionCount int) ([]Subject, error) {
	argsKV := map[string]interface{}{
		"owner":          strings.TrimSpace(owner),
		"question_count": questionCount,
	}
	query, args, err := sqlx.Named(queryListSubjects, argsKV)
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	subjects := make([]Subject, 0)
	if err := p.db.SelectContext(ctx, &subjects, p.db.Rebind(query), args...); err != nil {
		p.log.WithField("error", err.Error()).Error("Database error when listing subjects")
		return nil, err
	}
	return subjects, nil
}
