package clipboard

import (
	"sync"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// Memory is an in-process clipboard used for headless runs and tests
type Memory struct {
	mu      sync.Mutex
	current domain.Snapshot
	changes int64
}

// Ensure Memory implements port.Clipboard
var _ port.Clipboard = (*Memory)(nil)

// NewMemory creates an empty in-process clipboard
func NewMemory() *Memory {
	return &Memory{}
}

// Set replaces the contents and bumps the change counter
func (m *Memory) Set(s domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = cloneSnapshot(s)
	m.changes++
}

func (m *Memory) ChangeCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.changes
}

func (m *Memory) Read() (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.current), nil
}

func (m *Memory) WriteText(text string) error {
	m.Set(domain.Snapshot{PlainText: text})
	return nil
}

func (m *Memory) WriteFiles(paths []string) error {
	m.Set(domain.Snapshot{Files: paths, PlainText: FormatFileURIs(paths)})
	return nil
}

func (m *Memory) WriteImage(png []byte) error {
	m.Set(domain.Snapshot{Image: png})
	return nil
}

func cloneSnapshot(s domain.Snapshot) domain.Snapshot {
	out := s
	if s.Image != nil {
		out.Image = append([]byte(nil), s.Image...)
	}
	if s.Files != nil {
		out.Files = append([]string(nil), s.Files...)
	}
	return out
}
