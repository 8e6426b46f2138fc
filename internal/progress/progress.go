// Package progress renders a console bar that advances once per finished
// package.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// Reporter implements port.Progress on top of a progress bar
type Reporter struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	done    int
	skipped int
	failed  int
}

// New creates a Reporter for total packages writing to w
func New(w io.Writer, total int) *Reporter {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("mirroring"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
	return &Reporter{bar: bar}
}

// Add advances the bar by one outcome
func (r *Reporter) Add(o *domain.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done++
	switch o.Status {
	case domain.OutcomeSkipped:
		r.skipped++
	case domain.OutcomeFailed:
		r.failed++
	}

	if r.failed > 0 {
		r.bar.Describe(fmt.Sprintf("mirroring (%d failed)", r.failed))
	}
	_ = r.bar.Add(1)
}

// Finish completes the bar
func (r *Reporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.bar.Finish()
}

// Counts returns finished, skipped and failed totals seen so far
func (r *Reporter) Counts() (done, skipped, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done, r.skipped, r.failed
}
