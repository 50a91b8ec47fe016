package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/adapter/filesystem"
	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/util/imaging"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func newBlobDir(t *testing.T) *filesystem.BlobDir {
	t.Helper()
	b, err := filesystem.NewBlobDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobDir: %v", err)
	}
	return b
}

// countingBlobs wraps a BlobDir and counts reads
type countingBlobs struct {
	*filesystem.BlobDir
	reads atomic.Int64
	delay time.Duration
}

func (c *countingBlobs) ReadImage(path string) ([]byte, error) {
	c.reads.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.BlobDir.ReadImage(path)
}

type recordingScheduler struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingScheduler) Schedule(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
	return true
}

func TestGenerator_Generate(t *testing.T) {
	blobs := newBlobDir(t)
	orig, err := blobs.SaveImage(pngBytes(t, 300, 120), time.Now())
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}

	metrics := event.NewMetricsHandler()
	d := event.NewInMemoryDispatcher(false)
	d.Subscribe(metrics)

	g := NewGenerator(blobs, d, GeneratorConfig{Size: 80, Scale: 2}, zap.NewNop())
	if err := g.Generate(orig); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := os.ReadFile(blobs.ThumbnailPath(orig))
	if err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}
	img, _, err := imaging.Decode(data)
	if err != nil {
		t.Fatalf("thumbnail not decodable: %v", err)
	}
	if w, h := imaging.Size(img); w != 160 || h != 160 {
		t.Errorf("thumbnail is %dx%d, want 160x160", w, h)
	}
	if metrics.GetMetrics()["thumbnails_generated"] != 1 {
		t.Error("ThumbnailGenerated was not dispatched")
	}
}

func TestGenerator_MissingOriginalIsSilent(t *testing.T) {
	blobs := newBlobDir(t)
	g := NewGenerator(blobs, nil, GeneratorConfig{}, zap.NewNop())

	if err := g.Generate(blobs.Dir() + "/1_gone.png"); err != nil {
		t.Errorf("Generate on missing original = %v, want nil", err)
	}
}

func TestGenerator_UndecodableIsAnError(t *testing.T) {
	blobs := newBlobDir(t)
	orig, _ := blobs.SaveImage([]byte("garbage"), time.Now())
	g := NewGenerator(blobs, nil, GeneratorConfig{}, zap.NewNop())

	if err := g.Generate(orig); err == nil {
		t.Error("Generate on garbage should fail")
	}
	if filesystem.FileExists(blobs.ThumbnailPath(orig)) {
		t.Error("no thumbnail should be written for garbage")
	}
}

func TestGenerator_WorkersDrainOnStop(t *testing.T) {
	blobs := newBlobDir(t)
	var paths []string
	for i := 0; i < 5; i++ {
		p, err := blobs.SaveImage(pngBytes(t, 40, 40), time.Now())
		if err != nil {
			t.Fatalf("SaveImage: %v", err)
		}
		paths = append(paths, p)
	}

	g := NewGenerator(blobs, nil, GeneratorConfig{Size: 8, Scale: 1, Workers: 2, QueueSize: 8}, zap.NewNop())
	if g.Schedule(paths[0]) {
		t.Fatal("Schedule before Start should be rejected")
	}
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, p := range paths {
		if !g.Schedule(p) {
			t.Fatalf("Schedule(%s) dropped", p)
		}
	}
	g.Stop()

	for _, p := range paths {
		if !filesystem.FileExists(blobs.ThumbnailPath(p)) {
			t.Errorf("thumbnail for %s missing after Stop", p)
		}
	}
	if g.Schedule(paths[0]) {
		t.Error("Schedule after Stop should be rejected")
	}
}

func TestGenerator_FullQueueDrops(t *testing.T) {
	blobs := newBlobDir(t)
	g := NewGenerator(blobs, nil, GeneratorConfig{QueueSize: 1}, zap.NewNop())
	// running without workers so nothing drains the queue
	g.jobs = make(chan string, 1)
	g.running = true

	if !g.Schedule("a") {
		t.Fatal("first job should fit")
	}
	if g.Schedule("b") {
		t.Error("second job should be dropped")
	}
	if g.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", g.Dropped())
	}
}

func TestCache_LoadsSiblingAndHits(t *testing.T) {
	dir := newBlobDir(t)
	blobs := &countingBlobs{BlobDir: dir}
	orig, _ := dir.SaveImage(pngBytes(t, 64, 64), time.Now())
	dir.WriteThumbnail(orig, pngBytes(t, 16, 16))

	c := NewCache(blobs, nil, CacheConfig{MaxEntries: 10}, zap.NewNop())

	first, err := c.Get(orig)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.FromOriginal {
		t.Error("sibling exists, should not fall back")
	}
	if w, _ := imaging.Size(first.Image); w != 16 {
		t.Errorf("loaded width %d, want the 16px sibling", w)
	}

	if _, err := c.Get(orig); err != nil {
		t.Fatalf("Get: %v", err)
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || blobs.reads.Load() != 1 {
		t.Errorf("stats = %+v, reads = %d", stats, blobs.reads.Load())
	}
}

func TestCache_FallsBackToOriginal(t *testing.T) {
	dir := newBlobDir(t)
	orig, _ := dir.SaveImage(pngBytes(t, 200, 50), time.Now())
	sched := &recordingScheduler{}

	c := NewCache(dir, sched, CacheConfig{PixelSize: 20}, zap.NewNop())
	thumb, err := c.Get(orig)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !thumb.FromOriginal {
		t.Error("missing sibling should fall back to the original")
	}
	if w, h := imaging.Size(thumb.Image); w != 20 || h != 20 {
		t.Errorf("fallback preview %dx%d, want 20x20", w, h)
	}
	if len(sched.paths) != 1 || sched.paths[0] != orig {
		t.Errorf("regeneration scheduled for %v", sched.paths)
	}
}

func TestCache_EnforcesBothBounds(t *testing.T) {
	dir := newBlobDir(t)
	var paths []string
	for i := 0; i < 4; i++ {
		p, _ := dir.SaveImage(pngBytes(t, 10, 10), time.Now())
		dir.WriteThumbnail(p, pngBytes(t, 10, 10))
		paths = append(paths, p)
	}

	byCount := NewCache(dir, nil, CacheConfig{MaxEntries: 2}, zap.NewNop())
	for _, p := range paths {
		byCount.Get(p)
	}
	if s := byCount.Stats(); s.Entries != 2 || s.Evictions != 2 {
		t.Errorf("count bound: %+v", s)
	}
	// most recent two survive
	byCount.Get(paths[3])
	if s := byCount.Stats(); s.Hits != 1 {
		t.Errorf("most recent entry was evicted: %+v", s)
	}

	probe, _ := byCount.Get(paths[3])
	limit := probe.Cost()*2 + 1
	byBytes := NewCache(dir, nil, CacheConfig{MaxBytes: limit}, zap.NewNop())
	for _, p := range paths {
		byBytes.Get(p)
	}
	if s := byBytes.Stats(); s.Entries != 2 || s.Bytes > limit {
		t.Errorf("byte bound: %+v (limit %d)", s, limit)
	}
}

func TestCache_SingleflightLoads(t *testing.T) {
	dir := newBlobDir(t)
	blobs := &countingBlobs{BlobDir: dir, delay: 50 * time.Millisecond}
	orig, _ := dir.SaveImage(pngBytes(t, 10, 10), time.Now())
	dir.WriteThumbnail(orig, pngBytes(t, 10, 10))

	c := NewCache(blobs, nil, CacheConfig{}, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(orig); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := blobs.reads.Load(); n != 1 {
		t.Errorf("ReadImage called %d times, want 1", n)
	}
}

func TestCache_HandlesStoreEvents(t *testing.T) {
	dir := newBlobDir(t)
	a, _ := dir.SaveImage(pngBytes(t, 10, 10), time.Now())
	b, _ := dir.SaveImage(pngBytes(t, 10, 10), time.Now())
	dir.WriteThumbnail(a, pngBytes(t, 10, 10))
	dir.WriteThumbnail(b, pngBytes(t, 10, 10))

	c := NewCache(dir, nil, CacheConfig{}, zap.NewNop())
	d := event.NewInMemoryDispatcher(false)
	d.Subscribe(c)

	c.Get(a)
	c.Get(b)

	d.Dispatch(event.NewEntriesEvicted([]string{"x"}, []string{a}))
	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("after eviction entries = %d, want 1", s.Entries)
	}

	d.Dispatch(event.NewOrphansReconciled([]string{dir.ThumbnailPath(b)}, 10))
	if s := c.Stats(); s.Entries != 0 {
		t.Errorf("after reconcile entries = %d, want 0", s.Entries)
	}

	c.Get(a)
	d.Dispatch(event.NewHistoryCleared(2, nil))
	if s := c.Stats(); s.Entries != 0 || s.Bytes != 0 {
		t.Errorf("after clear = %+v", s)
	}
}
