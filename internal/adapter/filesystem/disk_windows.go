//go:build windows

package filesystem

import (
	"errors"
)

// DiskUsage describes the volume holding the blob directory
type DiskUsage struct {
	Total   uint64
	Used    uint64
	Free    uint64
	UsedPct float64
}

// DiskUsage is not reported on windows
func (b *BlobDir) DiskUsage() (*DiskUsage, error) {
	return nil, errors.New("disk usage not supported on windows")
}
