package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// Store implements port.SnapshotStore using SQLite.
// Every Save replaces the whole table inside one transaction.
type Store struct {
	db *sql.DB
}

// Ensure Store implements port.SnapshotStore
var _ port.SnapshotStore = (*Store)(nil)

// Open opens a connection to the SQLite database
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; the persister is the only caller
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			position INTEGER PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			pinned BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_kind ON entries(kind)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}
	return nil
}

// Save replaces the stored snapshot with entries, keeping their order
func (s *Store) Save(ctx context.Context, entries []domain.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (position, id, kind, content, created_at, pinned)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.ID, string(e.Kind), e.Content, e.CreatedAt.UnixNano(), e.Pinned); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value, updated_at) VALUES ('saved_at', ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to update meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot in saved order
func (s *Store) Load(ctx context.Context) ([]domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, content, created_at, pinned
		FROM entries
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		var (
			e         domain.Entry
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Content, &createdAt, &e.Pinned); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
		}
		e.Kind = domain.Kind(kind)
		e.CreatedAt = time.Unix(0, createdAt)
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return entries, nil
}

// SavedAt returns when the last snapshot was committed
func (s *Store) SavedAt() (time.Time, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'saved_at'").Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, value)
}
