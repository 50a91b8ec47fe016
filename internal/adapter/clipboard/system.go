package clipboard

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.design/x/clipboard"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// System reads and writes the host clipboard through golang.design/x/clipboard.
// A watcher per format bumps the change counter whenever the contents change.
type System struct {
	logger  *zap.Logger
	changes atomic.Int64
	cancel  context.CancelFunc
}

// Ensure System implements port.Clipboard
var _ port.Clipboard = (*System)(nil)

// NewSystem initializes the host clipboard and starts watching it until
// Close is called or ctx is done.
func NewSystem(ctx context.Context, logger *zap.Logger) (*System, error) {
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &System{logger: logger, cancel: cancel}

	go s.watch(ctx, clipboard.FmtText)
	go s.watch(ctx, clipboard.FmtImage)

	return s, nil
}

func (s *System) watch(ctx context.Context, format clipboard.Format) {
	for range clipboard.Watch(ctx, format) {
		s.changes.Add(1)
	}
}

// ChangeCount returns the number of observed changes
func (s *System) ChangeCount() int64 {
	return s.changes.Load()
}

// Read returns every representation currently on the clipboard. Text made of
// file:// URIs is reported as file references as well.
func (s *System) Read() (domain.Snapshot, error) {
	var snap domain.Snapshot

	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		snap.Image = img
	}
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		snap.PlainText = string(text)
		if paths, ok := ParseFileURIs(snap.PlainText); ok {
			snap.Files = paths
		}
	}
	return snap, nil
}

// WriteText replaces the contents with a string
func (s *System) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// WriteFiles writes paths as a file:// URI list
func (s *System) WriteFiles(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no paths to write", domain.ErrInvalidInput)
	}
	clipboard.Write(clipboard.FmtText, []byte(FormatFileURIs(paths)))
	return nil
}

// WriteImage replaces the contents with PNG bytes
func (s *System) WriteImage(png []byte) error {
	if len(png) == 0 {
		return fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// Close stops the watchers
func (s *System) Close() error {
	s.cancel()
	return nil
}
