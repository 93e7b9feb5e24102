// Package sqlite is the SQLite-backed interaction store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/httpsim/internal/storage"
)

// Store is a SQLite implementation of storage.InteractionStore.
type Store struct {
	db *sql.DB
}

var _ storage.InteractionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and initializes the
// schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			content_type TEXT,
			matched_fixture TEXT,
			short_circuited INTEGER NOT NULL DEFAULT 0,
			forwarded INTEGER NOT NULL DEFAULT 0,
			status INTEGER NOT NULL,
			hook_failures TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_path ON interactions(path)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveInteraction(ctx context.Context, in *storage.Interaction) error {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}

	query := `INSERT INTO interactions
	          (id, method, path, content_type, matched_fixture, short_circuited, forwarded, status, hook_failures, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		in.ID, in.Method, in.Path, in.ContentType, in.MatchedFixture,
		boolToInt(in.ShortCircuited), boolToInt(in.Forwarded),
		in.Status, in.HookFailures, in.Duration.Nanoseconds(), in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	return nil
}

func (s *Store) ListInteractions(ctx context.Context, limit int) ([]*storage.Interaction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, method, path, content_type, matched_fixture, short_circuited, forwarded, status, hook_failures, duration_ns, created_at
	          FROM interactions ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var out []*storage.Interaction
	for rows.Next() {
		var in storage.Interaction
		var shortCircuited, forwarded int
		var durationNS int64
		if err := rows.Scan(&in.ID, &in.Method, &in.Path, &in.ContentType,
			&in.MatchedFixture, &shortCircuited, &forwarded, &in.Status,
			&in.HookFailures, &durationNS, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.ShortCircuited = shortCircuited != 0
		in.Forwarded = forwarded != 0
		in.Duration = time.Duration(durationNS)
		out = append(out, &in)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
