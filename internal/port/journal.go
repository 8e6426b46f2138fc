package port

import (
	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// Journal records mirror runs and their per-record outcomes
type Journal interface {
	// StartRun registers a new run and returns its ID
	StartRun(repoURL, saveDir, indexFile string, total int) (string, error)

	// RecordOutcome appends one outcome to a run
	RecordOutcome(runID string, outcome *domain.Outcome) error

	// FinishRun stores the final summary; runErr may be nil
	FinishRun(runID string, summary *domain.RunSummary, runErr error) error
}

// Progress receives outcomes as they are aggregated
type Progress interface {
	Add(outcome *domain.Outcome)
	Finish()
}
