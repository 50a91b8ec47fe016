package vo

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// BlobExt is the extension of every original and thumbnail file
	BlobExt = ".png"
	// ThumbSuffix is appended to an original's stem to name its thumbnail
	ThumbSuffix = "_thumb"
)

var (
	ErrEmptyBlobName   = errors.New("blob name cannot be empty")
	ErrInvalidBlobName = errors.New("invalid blob name")
)

// BlobName is the stem shared by an original image and its thumbnail.
// Stems have the form <unix-millis>_<hex suffix>.
type BlobName struct {
	stem string
}

// NewBlobName creates a fresh stem from the capture time and a random suffix.
func NewBlobName(at time.Time) (BlobName, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return BlobName{}, fmt.Errorf("failed to generate blob suffix: %w", err)
	}
	return BlobName{stem: strconv.FormatInt(at.UnixMilli(), 10) + "_" + hex.EncodeToString(buf)}, nil
}

// ParseBlobFile derives the blob stem from a file name in the blob
// directory. The second value reports whether the file is a thumbnail.
func ParseBlobFile(name string) (BlobName, bool, error) {
	if name == "" {
		return BlobName{}, false, ErrEmptyBlobName
	}
	base := filepath.Base(name)
	if !strings.HasSuffix(base, BlobExt) {
		return BlobName{}, false, fmt.Errorf("%w: %s", ErrInvalidBlobName, base)
	}
	stem := strings.TrimSuffix(base, BlobExt)
	thumb := false
	if strings.HasSuffix(stem, ThumbSuffix) {
		stem = strings.TrimSuffix(stem, ThumbSuffix)
		thumb = true
	}
	if stem == "" {
		return BlobName{}, false, fmt.Errorf("%w: %s", ErrInvalidBlobName, base)
	}
	return BlobName{stem: stem}, thumb, nil
}

// String returns the stem
func (b BlobName) String() string {
	return b.stem
}

// OriginalFile returns the original's file name
func (b BlobName) OriginalFile() string {
	return b.stem + BlobExt
}

// ThumbnailFile returns the thumbnail's file name
func (b BlobName) ThumbnailFile() string {
	return b.stem + ThumbSuffix + BlobExt
}

// ThumbnailPathFor maps an original image path to its thumbnail sibling.
// Paths that do not end in the blob extension get the suffix appended.
func ThumbnailPathFor(originalPath string) string {
	if strings.HasSuffix(originalPath, BlobExt) {
		return strings.TrimSuffix(originalPath, BlobExt) + ThumbSuffix + BlobExt
	}
	return originalPath + ThumbSuffix + BlobExt
}

// OriginalPathFor maps a thumbnail path back to its original sibling.
// The second value is false when path is not a thumbnail.
func OriginalPathFor(path string) (string, bool) {
	suffix := ThumbSuffix + BlobExt
	if !strings.HasSuffix(path, suffix) || len(path) == len(suffix) {
		return "", false
	}
	return strings.TrimSuffix(path, suffix) + BlobExt, true
}
