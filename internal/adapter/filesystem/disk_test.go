package filesystem

import (
	"errors"
	"math"
	"testing"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

func TestNewDiskUsage(t *testing.T) {
	tests := []struct {
		name        string
		total, free uint64
		wantUsed    uint64
		wantPct     float64
	}{
		{"half used", 100, 50, 50, 50},
		{"empty disk", 100, 100, 0, 0},
		{"zero total", 0, 0, 0, 0},
		{"free clamped to total", 10, 20, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newDiskUsage(tt.total, tt.free)
			if u.Used != tt.wantUsed {
				t.Errorf("Used = %d, want %d", u.Used, tt.wantUsed)
			}
			if u.UsedPct != tt.wantPct {
				t.Errorf("UsedPct = %v, want %v", u.UsedPct, tt.wantPct)
			}
		})
	}
}

func TestManager_CheckFreeSpace(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	usage, err := m.DiskUsage()
	if errors.Is(err, errors.ErrUnsupported) {
		t.Skip("disk usage not supported on this platform")
	}
	if err != nil {
		t.Fatalf("DiskUsage() error = %v", err)
	}
	if usage.Total == 0 {
		t.Error("Total = 0")
	}

	if _, err := m.CheckFreeSpace(0); err != nil {
		t.Errorf("CheckFreeSpace(0) error = %v", err)
	}
	if _, err := m.CheckFreeSpace(math.MaxUint64); !errors.Is(err, domain.ErrInsufficientSpace) {
		t.Errorf("CheckFreeSpace(max) error = %v, want ErrInsufficientSpace", err)
	}
}
