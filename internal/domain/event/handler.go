package event

import (
	"sync"

	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case EntryAdded:
		h.logger.Debug("entry added",
			zap.String("entry_id", e.EntryID),
			zap.String("kind", e.Kind),
			zap.Int("size", e.Size),
		)
	case EntriesEvicted:
		h.logger.Info("entries evicted",
			zap.Int("count", len(e.EntryIDs)),
			zap.Int("blobs", len(e.BlobPaths)),
		)
	case EntryPinToggled:
		h.logger.Debug("entry pin toggled",
			zap.String("entry_id", e.EntryID),
			zap.Bool("pinned", e.Pinned),
		)
	case EntriesRemoved:
		h.logger.Info("entries removed",
			zap.Int("count", len(e.EntryIDs)),
			zap.String("reason", e.Reason),
		)
	case HistoryCleared:
		h.logger.Info("history cleared",
			zap.Int("count", e.Count),
		)
	case OrphansReconciled:
		h.logger.Info("orphan blobs removed",
			zap.Int("files", len(e.Removed)),
			zap.Int64("bytes", e.Bytes),
		)
	case ThumbnailGenerated:
		h.logger.Debug("thumbnail generated",
			zap.String("original", e.OriginalPath),
			zap.String("thumbnail", e.ThumbnailPath),
			zap.Int64("size", e.Size),
			zap.Duration("duration", e.Duration),
		)
	case CaptureSkipped:
		h.logger.Debug("capture skipped",
			zap.String("reason", e.Reason),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{AllEvents}
}

// MetricsHandler collects counters from events
type MetricsHandler struct {
	mu sync.Mutex

	entriesAdded        int64
	entriesEvicted      int64
	entriesRemoved      int64
	historyClears       int64
	captureSkips        int64
	thumbnailsGenerated int64
	orphansRemoved      int64
	orphanBytes         int64
	snapshotsPersisted  int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case EntryAdded:
		h.entriesAdded++
	case EntriesEvicted:
		h.entriesEvicted += int64(len(e.EntryIDs))
	case EntriesRemoved:
		h.entriesRemoved += int64(len(e.EntryIDs))
	case HistoryCleared:
		h.historyClears++
	case CaptureSkipped:
		h.captureSkips++
	case ThumbnailGenerated:
		h.thumbnailsGenerated++
	case OrphansReconciled:
		h.orphansRemoved += int64(len(e.Removed))
		h.orphanBytes += e.Bytes
	case SnapshotPersisted:
		h.snapshotsPersisted++
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameEntryAdded,
		NameEntriesEvicted,
		NameEntriesRemoved,
		NameHistoryCleared,
		NameCaptureSkipped,
		NameThumbnailGenerated,
		NameOrphansReconciled,
		NameSnapshotPersisted,
	}
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return map[string]int64{
		"entries_added":        h.entriesAdded,
		"entries_evicted":      h.entriesEvicted,
		"entries_removed":      h.entriesRemoved,
		"history_clears":       h.historyClears,
		"capture_skips":        h.captureSkips,
		"thumbnails_generated": h.thumbnailsGenerated,
		"orphans_removed":      h.orphansRemoved,
		"orphan_bytes":         h.orphanBytes,
		"snapshots_persisted":  h.snapshotsPersisted,
	}
}
