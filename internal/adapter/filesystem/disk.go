package filesystem

import (
	"fmt"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
	"github.com/vertextoedge/cydia-mirror/internal/port"
)

func newDiskUsage(total, free uint64) *port.DiskUsage {
	if free > total {
		free = total
	}
	used := total - free

	var pct float64
	if total > 0 {
		pct = float64(used) / float64(total) * 100
	}
	return &port.DiskUsage{
		Total:   total,
		Used:    used,
		Free:    free,
		UsedPct: pct,
	}
}

// CheckFreeSpace fails with domain.ErrInsufficientSpace when less than
// minFree bytes are available under the save root. Zero disables the check.
func (m *Manager) CheckFreeSpace(minFree uint64) (*port.DiskUsage, error) {
	usage, err := m.DiskUsage()
	if err != nil {
		return nil, err
	}
	if minFree > 0 && usage.Free < minFree {
		return usage, fmt.Errorf("%w: %d bytes free, %d required",
			domain.ErrInsufficientSpace, usage.Free, minFree)
	}
	return usage, nil
}
