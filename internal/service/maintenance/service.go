package maintenance

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/util/ratelimiter"
)

// History is the part of the history store maintenance works on
type History interface {
	Evict() int
	FileReferences() []string
	RemoveByContentPaths(paths []string) int
}

// TempCleaner removes interrupted atomic writes
type TempCleaner interface {
	CleanStaleTempFiles(olderThan time.Duration) (int, error)
}

// Config contains maintenance service configuration
type Config struct {
	// Interval is how often eviction and the missing-file sweep run
	Interval time.Duration

	// SweepCooldown is the minimum gap between on-demand sweeps
	SweepCooldown time.Duration

	// CleanupInterval is how often stale temp files are removed
	CleanupInterval time.Duration

	// TempFileMaxAge is the age after which a temp file is stale
	TempFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:        time.Minute,
		SweepCooldown:   5 * time.Second,
		CleanupInterval: time.Hour,
		TempFileMaxAge:  time.Hour,
	}
}

// Service keeps the history within its bounds between captures: it
// re-applies the retention policy, drops file references whose files are
// gone and removes stale temp files.
type Service struct {
	config  *Config
	history History
	temps   TempCleaner
	logger  *zap.Logger
	limiter *ratelimiter.Limiter
	exists  func(path string) bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service; temps may be nil
func New(cfg *Config, history History, temps TempCleaner, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.SweepCooldown < 0 {
		cfg.SweepCooldown = 0
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.TempFileMaxAge <= 0 {
		cfg.TempFileMaxAge = time.Hour
	}

	return &Service{
		config:  cfg,
		history: history,
		temps:   temps,
		logger:  logger,
		limiter: ratelimiter.New(cfg.SweepCooldown),
		exists:  pathExists,
	}
}

// Start runs the maintenance loop until ctx is done or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("sweep_cooldown", s.config.SweepCooldown),
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// picks up sweeps requested during a cooldown
	pendingTicker := time.NewTicker(pendingInterval(s.config.SweepCooldown))
	defer pendingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce()
		case <-cleanupTicker.C:
			s.cleanupTempFiles()
		case <-pendingTicker.C:
			if s.limiter.TakePending() {
				s.Sweep()
			}
		}
	}
}

func pendingInterval(cooldown time.Duration) time.Duration {
	if cooldown < 100*time.Millisecond {
		return 100 * time.Millisecond
	}
	return cooldown
}

// RunOnce applies the retention policy and sweeps missing files
func (s *Service) RunOnce() {
	if n := s.history.Evict(); n > 0 {
		s.logger.Info("evicted expired entries", zap.Int("count", n))
	}
	s.Sweep()
}

// RequestSweep runs a sweep now unless one ran within the cooldown, in
// which case it is deferred to the end of the cooldown. It reports whether
// the sweep ran immediately.
func (s *Service) RequestSweep() bool {
	if !s.limiter.Request() {
		s.logger.Debug("sweep deferred by cooldown")
		return false
	}
	s.Sweep()
	return true
}

// Sweep removes file reference entries whose files no longer exist and
// returns how many entries were dropped
func (s *Service) Sweep() int {
	var missing []string
	for _, p := range s.history.FileReferences() {
		if !s.exists(p) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return 0
	}

	n := s.history.RemoveByContentPaths(missing)
	s.logger.Info("removed entries of missing files",
		zap.Int("count", n),
		zap.Strings("paths", missing))
	return n
}

func (s *Service) cleanupTempFiles() {
	if s.temps == nil {
		return
	}
	count, err := s.temps.CleanStaleTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup stale temp files", zap.Error(err))
	} else if count > 0 {
		s.logger.Info("cleaned up stale temp files", zap.Int("count", count))
	}
}

// pathExists reports false only for a definite not-exist error
func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
