package server

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/service/thumbnail"
)

// History is the part of the history store the API serves
type History interface {
	Get(id string) (domain.Entry, bool)
	FilteredAt(category domain.Category, search string) (uint64, []domain.Entry)
	TogglePin(id string) (domain.Entry, bool)
	Remove(id string) bool
	Clear() int
	Len() int
	Version() uint64
}

// Copier writes an entry back to the clipboard
type Copier interface {
	CopyToClipboard(e domain.Entry) error
}

// Thumbnails serves rendered thumbnails by original path
type Thumbnails interface {
	Get(originalPath string) (*thumbnail.Thumbnail, error)
}

// ItemResponse is one history entry as served by the API
type ItemResponse struct {
	domain.Entry
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// ListResponse is the body of GET /items
type ListResponse struct {
	Version uint64         `json:"version"`
	Items   []ItemResponse `json:"items"`
}

// ItemHandler handles history entry requests
type ItemHandler struct {
	history    History
	copier     Copier
	thumbnails Thumbnails
	logger     *zap.Logger
}

// NewItemHandler creates a new ItemHandler; copier and thumbnails may be nil
func NewItemHandler(history History, copier Copier, thumbnails Thumbnails, logger *zap.Logger) *ItemHandler {
	return &ItemHandler{
		history:    history,
		copier:     copier,
		thumbnails: thumbnails,
		logger:     logger,
	}
}

func toItem(e domain.Entry) ItemResponse {
	item := ItemResponse{Entry: e}
	if e.Kind == domain.KindImageBlob {
		item.ThumbnailURL = "/thumbnails/" + e.ID
	}
	return item
}

// HandleList serves GET /items?category=&q=
func (h *ItemHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, entries := h.history.FilteredAt(category, r.URL.Query().Get("q"))

	items := make([]ItemResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toItem(e))
	}
	writeJSON(w, http.StatusOK, ListResponse{Version: version, Items: items})
}

// HandleGet serves GET /items/{id}
func (h *ItemHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	e, ok := h.history.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrEntryNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, toItem(e))
}

// HandlePin serves POST /items/{id}/pin, which toggles the pinned flag
func (h *ItemHandler) HandlePin(w http.ResponseWriter, r *http.Request) {
	e, ok := h.history.TogglePin(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrEntryNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, toItem(e))
}

// HandleDelete serves DELETE /items/{id}
func (h *ItemHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !h.history.Remove(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, domain.ErrEntryNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClear serves DELETE /items
func (h *ItemHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	n := h.history.Clear()
	h.logger.Info("history cleared via API", zap.Int("removed", n))
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// HandleCopy serves POST /items/{id}/copy
func (h *ItemHandler) HandleCopy(w http.ResponseWriter, r *http.Request) {
	if h.copier == nil {
		writeError(w, http.StatusServiceUnavailable, "clipboard write-back is not available")
		return
	}
	e, ok := h.history.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrEntryNotFound.Error())
		return
	}
	if err := h.copier.CopyToClipboard(e); err != nil {
		h.logger.Error("failed to copy entry", zap.String("entry_id", e.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to copy entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleThumbnail serves GET /thumbnails/{id} as PNG
func (h *ItemHandler) HandleThumbnail(w http.ResponseWriter, r *http.Request) {
	e, ok := h.history.Get(r.PathValue("id"))
	if !ok || e.Kind != domain.KindImageBlob {
		writeError(w, http.StatusNotFound, domain.ErrEntryNotFound.Error())
		return
	}
	if h.thumbnails == nil {
		writeError(w, http.StatusServiceUnavailable, "thumbnails are not available")
		return
	}

	thumb, err := h.thumbnails.Get(e.Content)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "image file is missing")
			return
		}
		h.logger.Error("failed to load thumbnail", zap.String("path", e.Content), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(thumb.PNG)))
	w.Header().Set("Last-Modified", e.CreatedAt.UTC().Format(http.TimeFormat))
	if thumb.FromOriginal {
		// the sibling is being regenerated
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(time.Hour.Seconds())))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(thumb.PNG)
}
