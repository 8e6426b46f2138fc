//go:build !unix && !windows

package filesystem

import (
	"errors"

	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// DiskUsage is not available on this platform
func (m *Manager) DiskUsage() (*port.DiskUsage, error) {
	return nil, errors.ErrUnsupported
}
