package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/domain/event"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// Removal reasons reported in EntriesRemoved events
const (
	ReasonUser        = "user"
	ReasonFileMissing = "file_missing"
)

// Deps are the collaborators of a Store
type Deps struct {
	Policy     port.PolicySource
	Blobs      port.BlobStore
	Thumbnails port.ThumbnailScheduler
	Persister  SnapshotScheduler
	Dispatcher event.EventDispatcher
	Logger     *zap.Logger
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Store is the ordered, deduplicated, bounded clipboard history.
//
// Entries are kept newest-first. Every mutation holds one mutex, so
// mutations are serialized; each one bumps the version, dispatches events
// and hands an immutable copy of the history to the persister.
type Store struct {
	policy     port.PolicySource
	blobs      port.BlobStore
	thumbnails port.ThumbnailScheduler
	persister  SnapshotScheduler
	dispatcher event.EventDispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	entries []domain.Entry
	version uint64
	query   *QueryCache
}

// NewStore creates an empty Store
func NewStore(d Deps) *Store {
	if d.Policy == nil {
		d.Policy = port.StaticPolicy{}
	}
	if d.Persister == nil {
		d.Persister = nopScheduler{}
	}
	if d.Dispatcher == nil {
		d.Dispatcher = event.NewNullDispatcher()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Store{
		policy:     d.Policy,
		blobs:      d.Blobs,
		thumbnails: d.Thumbnails,
		persister:  d.Persister,
		dispatcher: d.Dispatcher,
		logger:     d.Logger,
		now:        d.Now,
		entries:    []domain.Entry{},
		query:      NewQueryCache(),
	}
}

// Load hydrates the store from snapshots and applies the current policy.
// A missing or malformed document leaves the store empty; neither is
// returned as an error.
func (s *Store) Load(ctx context.Context, snapshots port.SnapshotStore) int {
	entries, err := snapshots.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrMalformedSnapshot):
		s.logger.Warn("history snapshot is malformed, starting empty", zap.Error(err))
		entries = nil
	case err != nil:
		s.logger.Error("failed to load history snapshot, starting empty", zap.Error(err))
		entries = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = domain.CloneEntries(entries)
	if s.entries == nil {
		s.entries = []domain.Entry{}
	}
	loaded := len(s.entries)
	if s.evictLocked() > 0 {
		s.persistLocked()
	}

	s.logger.Info("history loaded",
		zap.Int("loaded", loaded),
		zap.Int("kept", len(s.entries)))
	return len(s.entries)
}

// Insert records a classified capture as the newest entry. If the newest
// entry already carries the same kind and content the call is a no-op and
// returns that entry with added false. Image captures are written to the
// blob directory first.
func (s *Store) Insert(c domain.Capture) (domain.Entry, bool, error) {
	at := c.CapturedAt
	if at.IsZero() {
		at = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	content := c.Content
	if c.Kind == domain.KindImageBlob && content == "" {
		if s.blobs == nil {
			return domain.Entry{}, false, fmt.Errorf("%w: no blob store for image capture", domain.ErrInvalidInput)
		}
		path, err := s.blobs.SaveImage(c.Image, at)
		if err != nil {
			return domain.Entry{}, false, err
		}
		content = path
	}

	entry := domain.NewEntry(c.Kind, content, at)
	if err := entry.Validate(); err != nil {
		return domain.Entry{}, false, err
	}

	if len(s.entries) > 0 && s.entries[0].SameContent(entry) {
		return s.entries[0], false, nil
	}

	s.entries = append([]domain.Entry{entry}, s.entries...)
	s.version++
	s.dispatcher.Dispatch(event.NewEntryAdded(entry.ID, string(entry.Kind), c.Size()))

	if entry.Kind == domain.KindImageBlob && s.thumbnails != nil {
		s.thumbnails.Schedule(entry.Content)
	}

	s.evictLocked()
	s.persistLocked()
	return entry, true, nil
}

// Evict applies the current retention policy and returns the number of
// entries removed
func (s *Store) Evict() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.evictLocked()
	if n > 0 {
		s.persistLocked()
	}
	return n
}

// evictLocked runs both eviction phases and reconciles the blob directory.
// Caller holds mu and persists if anything was removed.
func (s *Store) evictLocked() int {
	kept, removed := s.policy.Policy().Evict(s.entries, s.now())
	if len(removed) > 0 {
		s.entries = kept
		s.version++
		s.dispatcher.Dispatch(event.NewEntriesEvicted(entryIDs(removed), blobPaths(removed)))
	}
	s.reconcileLocked()
	return len(removed)
}

// reconcileLocked deletes blob files that no image entry references
func (s *Store) reconcileLocked() {
	if s.blobs == nil {
		return
	}
	valid := make(map[string]struct{})
	for _, e := range s.entries {
		if e.Kind == domain.KindImageBlob {
			valid[e.Content] = struct{}{}
		}
	}

	result, err := s.blobs.ReconcileOrphans(valid)
	if err != nil {
		s.logger.Warn("blob orphan reconciliation failed", zap.Error(err))
	}
	if result != nil && len(result.Removed) > 0 {
		s.dispatcher.Dispatch(event.NewOrphansReconciled(result.Removed, result.Bytes))
	}
}

func (s *Store) persistLocked() {
	s.persister.Schedule(s.version, domain.CloneEntries(s.entries))
}

// TogglePin flips the pinned flag of the entry with id. The second value is
// false if no such entry exists.
func (s *Store) TogglePin(id string) (domain.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return domain.Entry{}, false
	}
	s.entries[i].Pinned = !s.entries[i].Pinned
	s.version++
	s.dispatcher.Dispatch(event.NewEntryPinToggled(id, s.entries[i].Pinned))
	s.persistLocked()
	return s.entries[i], true
}

// Remove deletes the entry with id and reports whether it existed
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(func(e domain.Entry) bool { return e.ID == id }, ReasonUser) > 0
}

// RemoveByContentPaths deletes every path-carrying entry whose content is
// one of paths and returns how many were removed
func (s *Store) RemoveByContentPaths(paths []string) int {
	if len(paths) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(func(e domain.Entry) bool {
		if !e.Kind.IsPath() {
			return false
		}
		_, ok := set[e.Content]
		return ok
	}, ReasonFileMissing)
}

func (s *Store) removeLocked(match func(domain.Entry) bool, reason string) int {
	kept := make([]domain.Entry, 0, len(s.entries))
	var removed []domain.Entry
	for _, e := range s.entries {
		if match(e) {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) == 0 {
		return 0
	}

	s.entries = kept
	s.version++
	s.dispatcher.Dispatch(event.NewEntriesRemoved(entryIDs(removed), blobPaths(removed), reason))
	s.reconcileLocked()
	s.persistLocked()
	return len(removed)
}

// Clear empties the store, deletes every blob file and returns the number
// of entries discarded
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	paths := blobPaths(s.entries)
	s.entries = []domain.Entry{}
	s.version++
	s.dispatcher.Dispatch(event.NewHistoryCleared(n, paths))
	s.reconcileLocked()
	s.persistLocked()
	return n
}

// Items returns a copy of the whole history, newest first
func (s *Store) Items() []domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneEntries(s.entries)
}

// Get returns the entry with id
func (s *Store) Get(id string) (domain.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(id); i >= 0 {
		return s.entries[i], true
	}
	return domain.Entry{}, false
}

// Newest returns the most recent entry
func (s *Store) Newest() (domain.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return domain.Entry{}, false
	}
	return s.entries[0], true
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Version returns a counter that changes after every mutation
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Filtered returns the entries matching category and search, newest first.
// The result is memoized until the history, category or search changes.
func (s *Store) Filtered(category domain.Category, search string) []domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query.Filtered(s.version, s.entries, category, search)
}

// FilteredAt is Filtered together with the version the view was taken at
func (s *Store) FilteredAt(category domain.Category, search string) (uint64, []domain.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.query.Filtered(s.version, s.entries, category, search)
}

// QueryStats returns filter cache hits and misses
func (s *Store) QueryStats() (hits, misses int64) {
	return s.query.Stats()
}

// FileReferences returns the distinct paths of file reference entries
func (s *Store) FileReferences() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.entries {
		if e.Kind != domain.KindFileReference {
			continue
		}
		if _, ok := seen[e.Content]; ok {
			continue
		}
		seen[e.Content] = struct{}{}
		out = append(out, e.Content)
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func entryIDs(entries []domain.Entry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func blobPaths(entries []domain.Entry) []string {
	var paths []string
	for _, e := range entries {
		if e.Kind == domain.KindImageBlob {
			paths = append(paths, e.Content)
		}
	}
	return paths
}
