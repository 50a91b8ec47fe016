package folderwatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileWriter puts file references on the clipboard
type FileWriter interface {
	WriteFiles(paths []string) error
}

// SweepRequester is asked to drop entries of files that disappeared
type SweepRequester interface {
	RequestSweep() bool
}

// Config contains folder watch configuration
type Config struct {
	Path     string
	AutoCopy bool
	// Settle is how long events must be quiet before the folder is rescanned
	Settle time.Duration
}

// Watcher reports files added to one folder. New non-hidden files are
// written to the clipboard as file references, which the capture loop
// then records; removed files trigger a sweep.
type Watcher struct {
	config  Config
	clip    FileWriter
	sweeper SweepRequester
	logger  *zap.Logger

	// names present at the last scan
	known map[string]struct{}

	mu       sync.Mutex
	running  bool
	watching bool
	cancel   context.CancelFunc
}

// New creates a Watcher; sweeper may be nil
func New(cfg Config, clip FileWriter, sweeper SweepRequester, logger *zap.Logger) *Watcher {
	if cfg.Settle <= 0 {
		cfg.Settle = 300 * time.Millisecond
	}
	return &Watcher{
		config:  cfg,
		clip:    clip,
		sweeper: sweeper,
		logger:  logger,
		known:   map[string]struct{}{},
	}
}

// Start watches the folder until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	info, err := os.Stat(w.config.Path)
	if err != nil {
		return fmt.Errorf("failed to stat watch folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch folder %s is not a directory", w.config.Path)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("folder watcher already running")
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running, w.watching = false, false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create folder watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.config.Path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.config.Path, err)
	}

	// existing files are not new
	if _, _, err := w.Rescan(); err != nil {
		w.logger.Warn("initial folder scan failed", zap.String("path", w.config.Path), zap.Error(err))
	}

	w.mu.Lock()
	w.watching = true
	w.mu.Unlock()

	w.logger.Info("folder watcher started",
		zap.String("path", w.config.Path),
		zap.Bool("auto_copy", w.config.AutoCopy))

	settle := time.NewTimer(w.config.Settle)
	if !settle.Stop() {
		<-settle.C
	}
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("folder watcher stopped")
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			settle.Reset(w.config.Settle)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("folder watcher error", zap.Error(err))
		case <-settle.C:
			w.scanAndDispatch()
		}
	}
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
	}
}

// Watching reports whether the folder watch is established
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

// Rescan lists the folder and returns the names added and removed since
// the previous scan
func (w *Watcher) Rescan() (added, removed []string, err error) {
	current, err := listVisible(w.config.Path)
	if err != nil {
		return nil, nil, err
	}
	for name := range current {
		if _, ok := w.known[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range w.known {
		if _, ok := current[name]; !ok {
			removed = append(removed, name)
		}
	}
	w.known = current
	return added, removed, nil
}

func (w *Watcher) scanAndDispatch() {
	added, removed, err := w.Rescan()
	if err != nil {
		w.logger.Warn("folder scan failed", zap.String("path", w.config.Path), zap.Error(err))
		return
	}

	for _, name := range added {
		path := filepath.Join(w.config.Path, name)
		if !isReadable(path) {
			continue
		}
		w.logger.Debug("new file in watch folder", zap.String("path", path))
		if !w.config.AutoCopy {
			continue
		}
		if err := w.clip.WriteFiles([]string{path}); err != nil {
			w.logger.Warn("failed to copy new file to clipboard", zap.String("path", path), zap.Error(err))
		}
	}

	if len(removed) > 0 && w.sweeper != nil {
		w.sweeper.RequestSweep()
	}
}

func listVisible(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	out := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		out[e.Name()] = struct{}{}
	}
	return out, nil
}

func isReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
