//go:build windows

package filesystem

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// DiskUsage returns disk usage for the volume holding the save root
func (m *Manager) DiskUsage() (*port.DiskUsage, error) {
	pathPtr, err := windows.UTF16PtrFromString(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to convert path: %w", err)
	}

	var freeAvailable, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeAvailable, &total, &totalFree); err != nil {
		return nil, fmt.Errorf("failed to get disk stats: %w", err)
	}
	return newDiskUsage(total, freeAvailable), nil
}
