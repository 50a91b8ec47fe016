package capture

import (
	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// Adapter turns a clipboard's change counter into discrete snapshots.
// It never fails: read errors are logged and reported as no change.
type Adapter struct {
	clip     port.Clipboard
	logger   *zap.Logger
	lastSeen int64
}

// NewAdapter creates an Adapter. Contents already on the clipboard are
// treated as seen.
func NewAdapter(clip port.Clipboard, logger *zap.Logger) *Adapter {
	return &Adapter{
		clip:     clip,
		logger:   logger,
		lastSeen: clip.ChangeCount(),
	}
}

// Poll returns the current snapshot if the clipboard changed since the
// last poll
func (a *Adapter) Poll() (domain.Snapshot, bool) {
	count := a.clip.ChangeCount()
	if count == a.lastSeen {
		return domain.Snapshot{}, false
	}
	a.lastSeen = count

	snap, err := a.clip.Read()
	if err != nil {
		a.logger.Warn("failed to read clipboard", zap.Int64("change_count", count), zap.Error(err))
		return domain.Snapshot{}, false
	}
	return snap, true
}
