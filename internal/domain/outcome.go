package domain

import "time"

// Outcome status constants
const (
	OutcomeDownloaded = "downloaded"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
)

// Outcome is the result of processing a single package record.
// Exactly one is produced per record.
type Outcome struct {
	Index    int
	BundleID string
	Filename string
	Status   string
	Err      error

	BytesWritten int64
	Duration     time.Duration
}

// Succeeded returns true for downloaded and skipped outcomes
func (o *Outcome) Succeeded() bool {
	return o.Status != OutcomeFailed
}

// Reason returns the failure reason, or "" on success
func (o *Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RunSummary aggregates outcomes of a mirror run
type RunSummary struct {
	Total     int
	Succeeded int
	Failed    int

	// Skipped counts the subset of Succeeded whose local file already matched
	Skipped int

	Aborted bool
}

// Add folds one outcome into the summary
func (s *RunSummary) Add(o *Outcome) {
	if o.Succeeded() {
		s.Succeeded++
		if o.Status == OutcomeSkipped {
			s.Skipped++
		}
		return
	}
	s.Failed++
}

// Done returns true when every record has reported
func (s *RunSummary) Done() bool {
	return s.Succeeded+s.Failed >= s.Total
}

// Exceeds returns true once failures strictly exceed the threshold
func (s *RunSummary) Exceeds(threshold int) bool {
	return s.Failed > threshold
}
