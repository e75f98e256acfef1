// Package store persists editor drafts in SQLite so a session can be
// restored after it expires or the server restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store errors.
var (
	ErrDraftNotFound = errors.New("draft not found")
	ErrInvalidDraft  = errors.New("invalid draft")
)

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	session_id TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	theme      TEXT NOT NULL,
	font       TEXT NOT NULL,
	multiplier REAL NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_updated_at ON drafts(updated_at);
`

// timeFormat has fixed width so stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Draft is the saved editor state of one session.
type Draft struct {
	SessionID  string
	Source     string
	Theme      string
	Font       string
	Multiplier float64
	UpdatedAt  time.Time
}

// Store is a draft repository backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return newStore(ctx, db)
}

// OpenInMemory opens a private in-memory database, mainly for tests.
func OpenInMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	// Every connection would get its own empty database.
	db.SetMaxOpenConns(1)
	return newStore(ctx, db)
}

func newStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the draft of d.SessionID.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	if d == nil || d.SessionID == "" {
		return ErrInvalidDraft
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	if d.Multiplier < 1 {
		d.Multiplier = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (session_id, source, theme, font, multiplier, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			source = excluded.source,
			theme = excluded.theme,
			font = excluded.font,
			multiplier = excluded.multiplier,
			updated_at = excluded.updated_at
	`,
		d.SessionID,
		d.Source,
		d.Theme,
		d.Font,
		d.Multiplier,
		d.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Get returns the draft of a session.
func (s *Store) Get(ctx context.Context, sessionID string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, source, theme, font, multiplier, updated_at
		FROM drafts WHERE session_id = ?
	`, sessionID)
	return scanDraft(row)
}

// List returns the most recently updated drafts first.
func (s *Store) List(ctx context.Context, limit int) ([]*Draft, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, source, theme, font, multiplier, updated_at
		FROM drafts ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}
	return drafts, nil
}

// Delete removes the draft of a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// Prune deletes drafts not updated since before and returns how many.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < ?`,
		before.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("failed to prune drafts: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDraft(row scanner) (*Draft, error) {
	var (
		d         Draft
		updatedAt string
	)
	err := row.Scan(&d.SessionID, &d.Source, &d.Theme, &d.Font, &d.Multiplier, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan draft: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse draft time: %w", err)
	}
	return &d, nil
}
