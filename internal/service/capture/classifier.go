package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/domain/vo"
)

// Filters reject captures before they reach the store
type Filters struct {
	IgnoreConcealed  bool
	BlacklistEnabled bool
	// Blacklist holds source application identifiers, compared case-insensitively
	Blacklist []string
	// MaxItemSize bounds the payload; zero means unlimited
	MaxItemSize vo.ByteSize
}

// FilterSource provides the current filters. It is consulted on every
// classification so setting changes apply to the next capture.
type FilterSource interface {
	CaptureFilters() Filters
}

// StaticFilters is a FilterSource with fixed values
type StaticFilters Filters

// CaptureFilters returns the fixed filters
func (f StaticFilters) CaptureFilters() Filters {
	return Filters(f)
}

// Select picks exactly one representation from a snapshot. The first match
// wins: image bytes, then a file reference, then rich text, then plain text.
func Select(snap domain.Snapshot) (domain.Capture, bool) {
	switch {
	case len(snap.Image) > 0:
		return domain.Capture{Kind: domain.KindImageBlob, Image: snap.Image}, true
	case firstPath(snap.Files) != "":
		return domain.Capture{Kind: domain.KindFileReference, Content: firstPath(snap.Files)}, true
	case snap.RichText != "":
		return domain.Capture{Kind: domain.KindRichText, Content: validText(snap.RichText)}, true
	case snap.PlainText != "":
		return domain.Capture{Kind: domain.KindPlainText, Content: validText(snap.PlainText)}, true
	default:
		return domain.Capture{}, false
	}
}

// validText replaces invalid UTF-8 so the stored content equals what a
// snapshot reload yields
func validText(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

func firstPath(paths []string) string {
	for _, p := range paths {
		if p != "" {
			return p
		}
	}
	return ""
}

// Classifier applies the filters and the fixed representation priority
type Classifier struct {
	filters FilterSource
	now     func() time.Time
}

// NewClassifier creates a Classifier; filters may be nil
func NewClassifier(filters FilterSource) *Classifier {
	if filters == nil {
		filters = StaticFilters{}
	}
	return &Classifier{filters: filters, now: time.Now}
}

// Classify returns the capture for snap. Rejections are SkippableErrors.
func (c *Classifier) Classify(snap domain.Snapshot) (domain.Capture, error) {
	f := c.filters.CaptureFilters()

	if f.IgnoreConcealed && snap.Concealed {
		return domain.Capture{}, domain.ErrSkipConcealed
	}
	if f.BlacklistEnabled && isBlacklisted(snap.SourceApp, f.Blacklist) {
		return domain.Capture{}, domain.ErrSkipBlacklisted
	}

	if snap.IsEmpty() {
		return domain.Capture{}, domain.ErrSkipEmpty
	}
	capture, ok := Select(snap)
	if !ok {
		return domain.Capture{}, domain.ErrSkipEmpty
	}

	size, _ := vo.NewByteSize(int64(capture.Size()))
	if size.ExceedsLimit(f.MaxItemSize) {
		return domain.Capture{}, domain.NewSkippableError(domain.ErrPayloadTooLarge,
			fmt.Sprintf("%s payload of %s exceeds %s", capture.Kind, size, f.MaxItemSize))
	}

	capture.CapturedAt = c.now()
	return capture, nil
}

func isBlacklisted(app string, blacklist []string) bool {
	if app == "" {
		return false
	}
	for _, b := range blacklist {
		if strings.EqualFold(strings.TrimSpace(b), app) {
			return true
		}
	}
	return false
}
