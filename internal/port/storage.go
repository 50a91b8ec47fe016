package port

import (
	"context"
	"time"

	"github.com/vertextoedge/clipkeep/internal/domain"
)

// SnapshotStore persists the whole history as one document
type SnapshotStore interface {
	// Save atomically replaces the stored snapshot with entries
	Save(ctx context.Context, entries []domain.Entry) error

	// Load returns the stored snapshot, or an empty slice if none exists.
	// A corrupt document yields domain.ErrMalformedSnapshot.
	Load(ctx context.Context) ([]domain.Entry, error)

	// Close releases the backend
	Close() error
}

// BlobUsage summarizes the blob directory
type BlobUsage struct {
	Originals  int
	Thumbnails int
	Bytes      int64
}

// ReconcileResult lists what an orphan sweep deleted
type ReconcileResult struct {
	Removed []string
	Bytes   int64
}

// BlobStore holds image payloads as files outside the entry records
type BlobStore interface {
	// Dir returns the blob directory
	Dir() string

	// SaveImage writes data to a new uniquely named original file and
	// returns its absolute path
	SaveImage(data []byte, capturedAt time.Time) (string, error)

	// ReadImage returns the bytes of an original file
	ReadImage(path string) ([]byte, error)

	// ThumbnailPath returns the thumbnail sibling of an original path
	ThumbnailPath(originalPath string) string

	// WriteThumbnail atomically writes the thumbnail sibling of originalPath
	WriteThumbnail(originalPath string, png []byte) (string, error)

	// ReconcileOrphans deletes every original or thumbnail whose original
	// path is not in valid
	ReconcileOrphans(valid map[string]struct{}) (*ReconcileResult, error)

	// Usage returns file counts and total size
	Usage() (*BlobUsage, error)
}

// ThumbnailScheduler queues background thumbnail generation
type ThumbnailScheduler interface {
	// Schedule queues originalPath; it reports false if the job was dropped
	Schedule(originalPath string) bool
}
