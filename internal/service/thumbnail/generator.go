package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/port"
	"github.com/vertextoedge/clipkeep/internal/util/imaging"
)

// GeneratorConfig holds thumbnail generation settings
type GeneratorConfig struct {
	// Size is the logical edge length of a thumbnail
	Size int
	// Scale is the device scale factor; thumbnails are Size*Scale pixels
	Scale     int
	Workers   int
	QueueSize int
}

// PixelSize returns the rendered edge length in pixels
func (c GeneratorConfig) PixelSize() int {
	size, scale := c.Size, c.Scale
	if size <= 0 {
		size = 80
	}
	if scale <= 0 {
		scale = 1
	}
	return size * scale
}

// Generator renders thumbnail siblings for image blobs on a pool of workers.
// Jobs are queued without blocking; a full queue drops the job.
type Generator struct {
	blobs      port.BlobStore
	dispatcher event.EventDispatcher
	logger     *zap.Logger
	cfg        GeneratorConfig

	mu      sync.RWMutex
	running bool
	jobs    chan string
	group   *errgroup.Group
	dropped atomic.Int64
}

// Ensure Generator implements port.ThumbnailScheduler
var _ port.ThumbnailScheduler = (*Generator)(nil)

// NewGenerator creates a new thumbnail generator
func NewGenerator(blobs port.BlobStore, dispatcher event.EventDispatcher, cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	return &Generator{
		blobs:      blobs,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Start launches the workers
func (g *Generator) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return fmt.Errorf("thumbnail generator already running")
	}

	g.jobs = make(chan string, g.cfg.QueueSize)
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < g.cfg.Workers; i++ {
		jobs := g.jobs
		group.Go(func() error {
			g.work(ctx, jobs)
			return nil
		})
	}
	g.group = group
	g.running = true

	g.logger.Info("thumbnail generator started",
		zap.Int("workers", g.cfg.Workers),
		zap.Int("queue_size", g.cfg.QueueSize),
		zap.Int("pixels", g.cfg.PixelSize()),
	)
	return nil
}

// Stop closes the queue and waits for queued jobs to finish
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	close(g.jobs)
	group := g.group
	g.mu.Unlock()

	_ = group.Wait()
	g.logger.Info("thumbnail generator stopped")
}

// Schedule queues originalPath for generation
func (g *Generator) Schedule(originalPath string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.running {
		return false
	}
	select {
	case g.jobs <- originalPath:
		return true
	default:
		g.dropped.Add(1)
		g.logger.Warn("thumbnail queue full, dropping job", zap.String("path", originalPath))
		return false
	}
}

// Dropped returns the number of jobs dropped because the queue was full
func (g *Generator) Dropped() int64 {
	return g.dropped.Load()
}

func (g *Generator) work(ctx context.Context, jobs <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-jobs:
			if !ok {
				return
			}
			if err := g.Generate(path); err != nil {
				g.logger.Warn("thumbnail generation failed", zap.String("path", path), zap.Error(err))
			}
		}
	}
}

// Generate renders and writes the thumbnail for originalPath. An original
// that no longer exists is not an error.
func (g *Generator) Generate(originalPath string) error {
	start := time.Now()

	data, err := g.blobs.ReadImage(originalPath)
	if errors.Is(err, fs.ErrNotExist) {
		g.logger.Debug("original gone before thumbnail generation", zap.String("path", originalPath))
		return nil
	}
	if err != nil {
		return err
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return err
	}
	px := g.cfg.PixelSize()
	encoded, err := imaging.EncodePNG(imaging.AspectFill(img, px, px))
	if err != nil {
		return err
	}

	thumbPath, err := g.blobs.WriteThumbnail(originalPath, encoded)
	if err != nil {
		return err
	}

	// the entry may have been evicted while rendering
	if _, err := os.Stat(originalPath); errors.Is(err, fs.ErrNotExist) {
		os.Remove(thumbPath)
		return nil
	}

	g.dispatcher.Dispatch(event.NewThumbnailGenerated(originalPath, thumbPath, int64(len(encoded)), time.Since(start)))
	return nil
}
