package folderwatch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingClipboard struct {
	mu     sync.Mutex
	writes [][]string
}

func (r *recordingClipboard) WriteFiles(paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, append([]string(nil), paths...))
	return nil
}

func (r *recordingClipboard) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.writes...)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (c *countingSweeper) RequestSweep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return true
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestWatcher_Rescan(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.png"))
	write(t, filepath.Join(dir, ".DS_Store"))
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	w := New(Config{Path: dir}, &recordingClipboard{}, nil, zap.NewNop())

	added, removed, err := w.Rescan()
	if err != nil {
		t.Fatalf("Rescan() error: %v", err)
	}
	if len(added) != 1 || added[0] != "a.png" || len(removed) != 0 {
		t.Fatalf("first scan added %v removed %v", added, removed)
	}

	write(t, filepath.Join(dir, "b.png"))
	os.Remove(filepath.Join(dir, "a.png"))

	added, removed, _ = w.Rescan()
	sort.Strings(added)
	if len(added) != 1 || added[0] != "b.png" {
		t.Errorf("added = %v, want [b.png]", added)
	}
	if len(removed) != 1 || removed[0] != "a.png" {
		t.Errorf("removed = %v, want [a.png]", removed)
	}
}

func TestWatcher_ScanAndDispatch(t *testing.T) {
	tests := []struct {
		name       string
		autoCopy   bool
		wantWrites int
	}{
		{"auto copy", true, 1},
		{"report only", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			clip := &recordingClipboard{}
			sweeper := &countingSweeper{}
			w := New(Config{Path: dir, AutoCopy: tt.autoCopy}, clip, sweeper, zap.NewNop())
			w.Rescan()

			file := filepath.Join(dir, "shot.png")
			write(t, file)
			w.scanAndDispatch()

			writes := clip.snapshot()
			if len(writes) != tt.wantWrites {
				t.Fatalf("writes = %v, want %d", writes, tt.wantWrites)
			}
			if tt.wantWrites > 0 && writes[0][0] != file {
				t.Errorf("copied %v, want %s", writes[0], file)
			}

			os.Remove(file)
			w.scanAndDispatch()
			if sweeper.count() != 1 {
				t.Errorf("sweep requests = %d, want 1", sweeper.count())
			}
		})
	}
}

func TestWatcher_StartRejectsMissingFolder(t *testing.T) {
	w := New(Config{Path: filepath.Join(t.TempDir(), "nope")}, &recordingClipboard{}, nil, zap.NewNop())
	if err := w.Start(context.Background()); err == nil {
		t.Error("Start on a missing folder should fail")
	}
}

func TestWatcher_CopiesNewFiles(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "existing.txt"))

	clip := &recordingClipboard{}
	w := New(Config{Path: dir, AutoCopy: true, Settle: 20 * time.Millisecond}, clip, nil, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	// wait for the watch to be in place
	deadline := time.Now().Add(2 * time.Second)
	for !w.Watching() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	file := filepath.Join(dir, "new.txt")
	write(t, file)

	for len(clip.snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	writes := clip.snapshot()
	if len(writes) != 1 || writes[0][0] != file {
		t.Errorf("writes = %v, want only %s", writes, file)
	}

	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
