package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// JSONSnapshot stores the history as one JSON array document
type JSONSnapshot struct {
	path string
}

// Ensure JSONSnapshot implements port.SnapshotStore
var _ port.SnapshotStore = (*JSONSnapshot)(nil)

// NewJSONSnapshot creates a snapshot store backed by the file at path
func NewJSONSnapshot(path string) *JSONSnapshot {
	return &JSONSnapshot{path: path}
}

// Path returns the document location
func (s *JSONSnapshot) Path() string {
	return s.path
}

// Save replaces the document with entries
func (s *JSONSnapshot) Save(ctx context.Context, entries []domain.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return WriteFileAtomic(s.path, data, 0o600)
}

// Load reads the document. A missing file yields an empty history.
func (s *JSONSnapshot) Load(ctx context.Context) ([]domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var entries []domain.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedSnapshot, err)
		}
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}

// Close is a no-op
func (s *JSONSnapshot) Close() error {
	return nil
}
