package event

import (
	"time"
)

// Event names
const (
	NameEntryAdded         = "entry.added"
	NameEntriesEvicted     = "entry.evicted"
	NameEntryPinToggled    = "entry.pin_toggled"
	NameEntriesRemoved     = "entry.removed"
	NameHistoryCleared     = "history.cleared"
	NameOrphansReconciled  = "blob.orphans_reconciled"
	NameThumbnailGenerated = "thumbnail.generated"
	NameCaptureSkipped     = "capture.skipped"
	NameSnapshotPersisted  = "snapshot.persisted"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

func now() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// EntryAdded is raised when a capture becomes the newest history entry
type EntryAdded struct {
	BaseEvent
	EntryID string
	Kind    string
	Size    int
}

// EventName returns the event name
func (e EntryAdded) EventName() string {
	return NameEntryAdded
}

// NewEntryAdded creates a new EntryAdded event
func NewEntryAdded(id, kind string, size int) EntryAdded {
	return EntryAdded{BaseEvent: now(), EntryID: id, Kind: kind, Size: size}
}

// EntriesEvicted is raised when the retention policy drops entries.
// BlobPaths lists image originals that lost their referencing entry.
type EntriesEvicted struct {
	BaseEvent
	EntryIDs  []string
	BlobPaths []string
}

// EventName returns the event name
func (e EntriesEvicted) EventName() string {
	return NameEntriesEvicted
}

// NewEntriesEvicted creates a new EntriesEvicted event
func NewEntriesEvicted(ids, blobPaths []string) EntriesEvicted {
	return EntriesEvicted{BaseEvent: now(), EntryIDs: ids, BlobPaths: blobPaths}
}

// EntryPinToggled is raised when an entry's pinned flag flips
type EntryPinToggled struct {
	BaseEvent
	EntryID string
	Pinned  bool
}

// EventName returns the event name
func (e EntryPinToggled) EventName() string {
	return NameEntryPinToggled
}

// NewEntryPinToggled creates a new EntryPinToggled event
func NewEntryPinToggled(id string, pinned bool) EntryPinToggled {
	return EntryPinToggled{BaseEvent: now(), EntryID: id, Pinned: pinned}
}

// EntriesRemoved is raised when entries are removed explicitly or because
// the file they reference disappeared.
type EntriesRemoved struct {
	BaseEvent
	EntryIDs  []string
	BlobPaths []string
	Reason    string
}

// EventName returns the event name
func (e EntriesRemoved) EventName() string {
	return NameEntriesRemoved
}

// NewEntriesRemoved creates a new EntriesRemoved event
func NewEntriesRemoved(ids, blobPaths []string, reason string) EntriesRemoved {
	return EntriesRemoved{BaseEvent: now(), EntryIDs: ids, BlobPaths: blobPaths, Reason: reason}
}

// HistoryCleared is raised when every entry is discarded
type HistoryCleared struct {
	BaseEvent
	Count     int
	BlobPaths []string
}

// EventName returns the event name
func (e HistoryCleared) EventName() string {
	return NameHistoryCleared
}

// NewHistoryCleared creates a new HistoryCleared event
func NewHistoryCleared(count int, blobPaths []string) HistoryCleared {
	return HistoryCleared{BaseEvent: now(), Count: count, BlobPaths: blobPaths}
}

// OrphansReconciled is raised after a blob directory sweep deleted files
type OrphansReconciled struct {
	BaseEvent
	Removed []string
	Bytes   int64
}

// EventName returns the event name
func (e OrphansReconciled) EventName() string {
	return NameOrphansReconciled
}

// NewOrphansReconciled creates a new OrphansReconciled event
func NewOrphansReconciled(removed []string, bytes int64) OrphansReconciled {
	return OrphansReconciled{BaseEvent: now(), Removed: removed, Bytes: bytes}
}

// ThumbnailGenerated is raised when a thumbnail sibling has been written
type ThumbnailGenerated struct {
	BaseEvent
	OriginalPath  string
	ThumbnailPath string
	Size          int64
	Duration      time.Duration
}

// EventName returns the event name
func (e ThumbnailGenerated) EventName() string {
	return NameThumbnailGenerated
}

// NewThumbnailGenerated creates a new ThumbnailGenerated event
func NewThumbnailGenerated(original, thumb string, size int64, duration time.Duration) ThumbnailGenerated {
	return ThumbnailGenerated{
		BaseEvent:     now(),
		OriginalPath:  original,
		ThumbnailPath: thumb,
		Size:          size,
		Duration:      duration,
	}
}

// CaptureSkipped is raised when a clipboard change was intentionally ignored
type CaptureSkipped struct {
	BaseEvent
	Reason string
}

// EventName returns the event name
func (e CaptureSkipped) EventName() string {
	return NameCaptureSkipped
}

// NewCaptureSkipped creates a new CaptureSkipped event
func NewCaptureSkipped(reason string) CaptureSkipped {
	return CaptureSkipped{BaseEvent: now(), Reason: reason}
}

// SnapshotPersisted is raised after the history snapshot reached storage
type SnapshotPersisted struct {
	BaseEvent
	Version  uint64
	Entries  int
	Duration time.Duration
}

// EventName returns the event name
func (e SnapshotPersisted) EventName() string {
	return NameSnapshotPersisted
}

// NewSnapshotPersisted creates a new SnapshotPersisted event
func NewSnapshotPersisted(version uint64, entries int, duration time.Duration) SnapshotPersisted {
	return SnapshotPersisted{BaseEvent: now(), Version: version, Entries: entries, Duration: duration}
}
