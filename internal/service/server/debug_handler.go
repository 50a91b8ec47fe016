package server

import (
	"net/http"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/port"
	"github.com/vertextoedge/clipkeep/internal/service/thumbnail"
)

// Deps are the collaborators the API reads from. Only History is required.
type Deps struct {
	History    History
	Copier     Copier
	Thumbnails Thumbnails
	// Snapshots is checked by /health when it can be pinged
	Snapshots interface{ Ping() error }

	Metrics    interface{ GetMetrics() map[string]int64 }
	Blobs      interface{ Usage() (*port.BlobUsage, error) }
	CacheStats interface{ Stats() thumbnail.CacheStats }
	Generator  interface{ Dropped() int64 }
	QueryStats interface{ QueryStats() (hits, misses int64) }
	Persister  interface {
		LastSaved() uint64
		Failures() int64
	}
}

// DebugHandler handles debug endpoint requests
type DebugHandler struct {
	deps   Deps
	logger *zap.Logger
}

// NewDebugHandler creates a new DebugHandler
func NewDebugHandler(deps Deps, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{
		deps:   deps,
		logger: logger,
	}
}

// HandleStats serves GET /debug/stats
func (h *DebugHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"entries": h.deps.History.Len(),
		"version": h.deps.History.Version(),
	}

	if h.deps.Metrics != nil {
		response["events"] = h.deps.Metrics.GetMetrics()
	}

	if h.deps.Blobs != nil {
		usage, err := h.deps.Blobs.Usage()
		if err != nil {
			h.logger.Error("failed to get blob usage", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to get blob usage")
			return
		}
		response["blobs"] = map[string]interface{}{
			"originals":  usage.Originals,
			"thumbnails": usage.Thumbnails,
			"bytes":      usage.Bytes,
			"size":       humanize.IBytes(uint64(usage.Bytes)),
		}
	}

	if h.deps.CacheStats != nil {
		response["thumbnail_cache"] = h.deps.CacheStats.Stats()
	}

	if h.deps.Generator != nil {
		response["thumbnail_jobs_dropped"] = h.deps.Generator.Dropped()
	}

	if h.deps.QueryStats != nil {
		hits, misses := h.deps.QueryStats.QueryStats()
		response["query_cache"] = map[string]int64{"hits": hits, "misses": misses}
	}

	if h.deps.Persister != nil {
		response["persistence"] = map[string]interface{}{
			"last_saved_version": h.deps.Persister.LastSaved(),
			"failures":           h.deps.Persister.Failures(),
		}
	}

	writeJSON(w, http.StatusOK, response)
}
