//go:build !windows

package filesystem

import (
	"fmt"
	"syscall"
)

// DiskUsage describes the volume holding the blob directory
type DiskUsage struct {
	Total   uint64
	Used    uint64
	Free    uint64
	UsedPct float64
}

// DiskUsage returns usage of the volume holding the blob directory
func (b *BlobDir) DiskUsage() (*DiskUsage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(b.dir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free

	usage := &DiskUsage{Total: total, Used: used, Free: free}
	if total > 0 {
		usage.UsedPct = float64(used) / float64(total) * 100
	}
	return usage, nil
}
