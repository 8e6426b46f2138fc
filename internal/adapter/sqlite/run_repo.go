package sqlite

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// RunRecord is a stored mirror run
type RunRecord struct {
	ID         string
	RepoURL    string
	SaveDir    string
	IndexFile  string
	Summary    domain.RunSummary
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// OutcomeRecord is a stored per-record outcome
type OutcomeRecord struct {
	Index        int
	BundleID     string
	Filename     string
	Status       string
	Error        string
	BytesWritten int64
	Duration     time.Duration
}

// StartRun registers a new run
func (s *Store) StartRun(repoURL, saveDir, indexFile string, total int) (string, error) {
	id := uuid.NewString()

	query := `
		INSERT INTO runs (id, repo_url, save_dir, index_file, total, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, id, repoURL, saveDir, indexFile, total, time.Now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

// RecordOutcome appends one outcome to a run
func (s *Store) RecordOutcome(runID string, o *domain.Outcome) error {
	query := `
		INSERT INTO outcomes (run_id, record_index, bundle_id, filename, status, error, bytes_written, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var errMsg sql.NullString
	if o.Err != nil {
		errMsg = sql.NullString{String: o.Err.Error(), Valid: true}
	}

	_, err := s.db.Exec(query,
		runID, o.Index, o.BundleID, o.Filename, o.Status, errMsg,
		o.BytesWritten, o.Duration.Milliseconds())
	return err
}

// FinishRun stores the final summary of a run
func (s *Store) FinishRun(runID string, summary *domain.RunSummary, runErr error) error {
	query := `
		UPDATE runs
		SET succeeded = ?, skipped = ?, failed = ?, aborted = ?, error = ?, finished_at = ?
		WHERE id = ?
	`

	var errMsg sql.NullString
	if runErr != nil {
		errMsg = sql.NullString{String: runErr.Error(), Valid: true}
	}

	result, err := s.db.Exec(query,
		summary.Succeeded, summary.Skipped, summary.Failed, summary.Aborted, errMsg,
		time.Now().UTC(), runID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	query := `
		SELECT id, repo_url, save_dir, index_file, total, succeeded, skipped, failed, aborted,
			   error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	run, err := scanRun(s.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first
func (s *Store) ListRuns(limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, repo_url, save_dir, index_file, total, succeeded, skipped, failed, aborted,
			   error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListOutcomes returns the outcomes of a run in the order they were recorded,
// optionally filtered by status
func (s *Store) ListOutcomes(runID, status string) ([]*OutcomeRecord, error) {
	query := `
		SELECT record_index, bundle_id, filename, status, error, bytes_written, duration_ms
		FROM outcomes
		WHERE run_id = ? AND (? = '' OR status = ?)
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query, runID, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*OutcomeRecord
	for rows.Next() {
		o := &OutcomeRecord{}
		var errMsg sql.NullString
		var durationMs int64
		if err := rows.Scan(&o.Index, &o.BundleID, &o.Filename, &o.Status, &errMsg,
			&o.BytesWritten, &durationMs); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			o.Error = errMsg.String
		}
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	run := &RunRecord{}
	var errMsg sql.NullString
	var finishedAt sql.NullTime

	err := row.Scan(
		&run.ID, &run.RepoURL, &run.SaveDir, &run.IndexFile,
		&run.Summary.Total, &run.Summary.Succeeded, &run.Summary.Skipped, &run.Summary.Failed,
		&run.Summary.Aborted, &errMsg, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		run.Error = errMsg.String
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return run, nil
}
