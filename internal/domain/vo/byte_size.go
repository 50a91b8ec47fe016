package vo

import (
	"errors"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// ByteSize is a non-negative byte count parsed from and printed as a
// human-readable string ("50MB", "10 MiB").
type ByteSize struct {
	bytes int64
}

var (
	ErrNegativeSize = errors.New("byte size cannot be negative")
)

// NewByteSize creates a new ByteSize value object.
func NewByteSize(bytes int64) (ByteSize, error) {
	if bytes < 0 {
		return ByteSize{}, ErrNegativeSize
	}
	return ByteSize{bytes: bytes}, nil
}

// ParseByteSize parses a human-readable size
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return ByteSize{}, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return ByteSize{}, fmt.Errorf("byte size %q overflows", s)
	}
	return ByteSize{bytes: int64(n)}, nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return b.bytes
}

// IsZero returns true if the size is zero.
func (b ByteSize) IsZero() bool {
	return b.bytes == 0
}

// ExceedsLimit reports whether the size is above a non-zero limit.
func (b ByteSize) ExceedsLimit(limit ByteSize) bool {
	return !limit.IsZero() && b.bytes > limit.bytes
}

// String returns the IEC representation, e.g. "50 MiB"
func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b.bytes))
}
