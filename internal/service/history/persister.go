package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// SnapshotScheduler accepts full history snapshots for background writing
type SnapshotScheduler interface {
	Schedule(version uint64, entries []domain.Entry)
}

type nopScheduler struct{}

func (nopScheduler) Schedule(uint64, []domain.Entry) {}

type pendingSnapshot struct {
	version uint64
	entries []domain.Entry
}

// Persister writes snapshots on a single background goroutine. Only the
// latest pending snapshot is kept, so a burst of mutations costs one write
// and writes never land out of order.
type Persister struct {
	store      port.SnapshotStore
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	mu      sync.Mutex
	pending *pendingSnapshot
	closed  bool

	saveMu    sync.Mutex
	lastSaved uint64
	failures  int64

	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// NewPersister creates a Persister and starts its writer goroutine
func NewPersister(store port.SnapshotStore, dispatcher event.EventDispatcher, logger *zap.Logger) *Persister {
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}
	p := &Persister{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		signal:     make(chan struct{}, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go p.run()
	return p
}

// Schedule replaces the pending snapshot. entries must not be modified
// by the caller afterwards.
func (p *Persister) Schedule(version uint64, entries []domain.Entry) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("snapshot scheduled after close, dropping", zap.Uint64("version", version))
		return
	}
	p.pending = &pendingSnapshot{version: version, entries: entries}
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Persister) run() {
	defer close(p.done)
	for {
		select {
		case <-p.signal:
			p.Flush()
		case <-p.stop:
			p.Flush()
			return
		}
	}
}

// Flush writes the pending snapshot, if any, before returning
func (p *Persister) Flush() {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	p.mu.Unlock()

	if snap == nil || snap.version <= p.lastSaved {
		return
	}

	start := time.Now()
	if err := p.store.Save(context.Background(), snap.entries); err != nil {
		p.failures++
		p.logger.Error("failed to persist history",
			zap.Uint64("version", snap.version),
			zap.Int("entries", len(snap.entries)),
			zap.Error(err))
		return
	}
	p.lastSaved = snap.version
	p.dispatcher.Dispatch(event.NewSnapshotPersisted(snap.version, len(snap.entries), time.Since(start)))
}

// LastSaved returns the version of the most recent successful write
func (p *Persister) LastSaved() uint64 {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.lastSaved
}

// Failures returns the number of failed writes
func (p *Persister) Failures() int64 {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return p.failures
}

// Close writes the pending snapshot and stops the writer goroutine
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	<-p.done
}
