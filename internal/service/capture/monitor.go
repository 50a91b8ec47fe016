package capture

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/util/imaging"
)

// State of the capture loop
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

// Recorder is the part of the history store the monitor writes to
type Recorder interface {
	Insert(c domain.Capture) (domain.Entry, bool, error)
	Newest() (domain.Entry, bool)
}

// Config contains capture loop configuration
type Config struct {
	PollInterval time.Duration
}

// Monitor drives poll, classify and insert on a single ticker. Each tick
// runs to completion before the next one is considered.
type Monitor struct {
	config     Config
	adapter    *Adapter
	classifier *Classifier
	store      Recorder
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	// fingerprint of the image behind lastImageID
	lastImageID   string
	lastImageHash [sha256.Size]byte

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewMonitor creates a capture Monitor
func NewMonitor(cfg Config, adapter *Adapter, classifier *Classifier, store Recorder, dispatcher event.EventDispatcher, logger *zap.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	return &Monitor{
		config:     cfg,
		adapter:    adapter,
		classifier: classifier,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start runs the capture loop until ctx is done or Stop is called
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("capture monitor already running")
	}
	m.running = true
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.logger.Info("capture monitor started", zap.Duration("poll_interval", m.config.PollInterval))

	m.wg.Add(1)
	go m.pollLoop(ctx)

	<-ctx.Done()
	m.wg.Wait()

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.logger.Info("capture monitor stopped")
	return nil
}

// Stop cancels the polling timer
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// State returns whether the loop is polling
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return StatePolling
	}
	return StateIdle
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick runs one poll, classify and insert cycle. It returns the inserted
// entry, if any.
func (m *Monitor) Tick() (domain.Entry, bool) {
	snap, changed := m.adapter.Poll()
	if !changed {
		return domain.Entry{}, false
	}

	capture, err := m.classifier.Classify(snap)
	if err != nil {
		m.skip(err)
		return domain.Entry{}, false
	}

	var hash [sha256.Size]byte
	if capture.Kind == domain.KindImageBlob {
		normalized, err := imaging.NormalizePNG(capture.Image)
		if err != nil {
			m.logger.Warn("dropping undecodable image capture", zap.Int("size", len(capture.Image)), zap.Error(err))
			return domain.Entry{}, false
		}
		capture.Image = normalized
		hash = sha256.Sum256(normalized)
		if m.isNewestImage(hash) {
			m.skip(domain.ErrSkipDuplicate)
			return domain.Entry{}, false
		}
	}

	entry, added, err := m.store.Insert(capture)
	if err != nil {
		m.logger.Error("failed to record capture", zap.String("kind", string(capture.Kind)), zap.Error(err))
		return domain.Entry{}, false
	}
	if !added {
		m.logger.Debug("capture matches newest entry", zap.String("entry_id", entry.ID))
		return domain.Entry{}, false
	}

	if entry.Kind == domain.KindImageBlob {
		m.lastImageID, m.lastImageHash = entry.ID, hash
	}
	m.logger.Debug("captured clipboard item",
		zap.String("entry_id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.Int("size", capture.Size()))
	return entry, true
}

// isNewestImage reports whether the newest entry is the image with hash
func (m *Monitor) isNewestImage(hash [sha256.Size]byte) bool {
	newest, ok := m.store.Newest()
	return ok && newest.Kind == domain.KindImageBlob &&
		newest.ID == m.lastImageID && hash == m.lastImageHash
}

func (m *Monitor) skip(err error) {
	if !domain.IsSkippable(err) {
		m.logger.Warn("capture rejected", zap.Error(err))
		return
	}
	m.logger.Debug("capture skipped", zap.Error(err))
	m.dispatcher.Dispatch(event.NewCaptureSkipped(err.Error()))
}
