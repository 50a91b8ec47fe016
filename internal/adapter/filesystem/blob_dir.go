package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/clipkeep/internal/domain/vo"
	"github.com/vertextoedge/clipkeep/internal/port"
)

// BlobDir stores image originals and their thumbnails in one flat directory
type BlobDir struct {
	dir string
}

// Ensure BlobDir implements port.BlobStore
var _ port.BlobStore = (*BlobDir)(nil)

// NewBlobDir creates the blob directory if needed
func NewBlobDir(dir string) (*BlobDir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &BlobDir{dir: abs}, nil
}

// Dir returns the blob directory
func (b *BlobDir) Dir() string {
	return b.dir
}

// SaveImage writes data to a new original file named after capturedAt
func (b *BlobDir) SaveImage(data []byte, capturedAt time.Time) (string, error) {
	name, err := vo.NewBlobName(capturedAt)
	if err != nil {
		return "", err
	}
	path := filepath.Join(b.dir, name.OriginalFile())
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return path, nil
}

// ReadImage returns the bytes of an original file
func (b *BlobDir) ReadImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// ThumbnailPath returns the thumbnail sibling of an original path
func (b *BlobDir) ThumbnailPath(originalPath string) string {
	return vo.ThumbnailPathFor(originalPath)
}

// WriteThumbnail atomically writes the thumbnail sibling of originalPath
func (b *BlobDir) WriteThumbnail(originalPath string, png []byte) (string, error) {
	path := b.ThumbnailPath(originalPath)
	if err := WriteFileAtomic(path, png, 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return path, nil
}

// Remove deletes a single blob file; a missing file is not an error
func (b *BlobDir) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// ReconcileOrphans deletes originals and thumbnails whose original path is
// not in valid. Files that do not follow the blob naming scheme are left alone.
func (b *BlobDir) ReconcileOrphans(valid map[string]struct{}) (*port.ReconcileResult, error) {
	keep := make(map[string]struct{}, len(valid))
	for p := range valid {
		keep[filepath.Clean(p)] = struct{}{}
	}

	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob dir: %w", err)
	}

	result := &port.ReconcileResult{}
	var firstErr error
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		name, _, err := vo.ParseBlobFile(de.Name())
		if err != nil {
			continue
		}
		if _, ok := keep[filepath.Join(b.dir, name.OriginalFile())]; ok {
			continue
		}

		path := filepath.Join(b.dir, de.Name())
		var size int64
		if info, err := de.Info(); err == nil {
			size = info.Size()
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete orphan %s: %w", path, err)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		result.Bytes += size
	}
	return result, firstErr
}

// Usage returns file counts and total size of blob files
func (b *BlobDir) Usage() (*port.BlobUsage, error) {
	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob dir: %w", err)
	}

	usage := &port.BlobUsage{}
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		_, thumb, err := vo.ParseBlobFile(de.Name())
		if err != nil {
			continue
		}
		if thumb {
			usage.Thumbnails++
		} else {
			usage.Originals++
		}
		if info, err := de.Info(); err == nil {
			usage.Bytes += info.Size()
		}
	}
	return usage, nil
}

// CleanStaleTempFiles removes temp files older than olderThan left behind by
// interrupted writes. Returns the number of files deleted.
func (b *BlobDir) CleanStaleTempFiles(olderThan time.Duration) (int, error) {
	dirEntries, err := os.ReadDir(b.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list blob dir: %w", err)
	}

	threshold := time.Now().Add(-olderThan)
	count := 0
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || !isTempName(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil || !info.ModTime().Before(threshold) {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, de.Name())); err == nil {
			count++
		}
	}
	return count, nil
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.Contains(name, tempMarker)
}
