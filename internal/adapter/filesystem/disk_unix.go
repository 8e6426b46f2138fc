//go:build unix

package filesystem

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// DiskUsage returns disk usage for the filesystem holding the save root
func (m *Manager) DiskUsage() (*port.DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.rootDir, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return newDiskUsage(total, free), nil
}
