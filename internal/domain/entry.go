package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies what an entry's content holds
type Kind string

const (
	KindPlainText     Kind = "plainText"
	KindRichText      Kind = "richText"
	KindFileReference Kind = "fileReference"
	KindImageBlob     Kind = "imageBlob"
)

// ParseKind converts a persisted kind string back into a Kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindPlainText, KindRichText, KindFileReference, KindImageBlob:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// IsText reports whether the kind carries literal text
func (k Kind) IsText() bool {
	return k == KindPlainText || k == KindRichText
}

// IsPath reports whether the kind carries an absolute filesystem path
func (k Kind) IsPath() bool {
	return k == KindFileReference || k == KindImageBlob
}

// Entry is one captured clipboard item.
//
// Content is literal text for text kinds and an absolute path for
// file references and image blobs.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Pinned    bool      `json:"pinned"`
}

// NewEntry creates an unpinned entry with a fresh identifier
func NewEntry(kind Kind, content string, createdAt time.Time) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Kind:      kind,
		Content:   content,
		CreatedAt: createdAt,
	}
}

// SameContent reports whether two entries carry the same (kind, content) pair
func (e Entry) SameContent(other Entry) bool {
	return e.Kind == other.Kind && e.Content == other.Content
}

// Validate checks the fields a persisted entry must carry
func (e Entry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: entry id is empty", ErrInvalidInput)
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: entry %s has no createdAt", ErrInvalidInput, e.ID)
	}
	return nil
}

// Capture is a classified payload that has not been stored yet.
// Image holds the raw bytes for KindImageBlob; Content is filled in
// once the blob has been written.
type Capture struct {
	Kind       Kind
	Content    string
	Image      []byte
	CapturedAt time.Time
}

// Size returns the payload size in bytes
func (c Capture) Size() int {
	if c.Kind == KindImageBlob {
		return len(c.Image)
	}
	return len(c.Content)
}

// CloneEntries returns a copy of entries that shares no backing array
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return nil
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
