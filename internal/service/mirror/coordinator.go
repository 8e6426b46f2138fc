// Package mirror downloads every package of a parsed index under a bounded
// concurrency budget and aborts once too many downloads fail.
package mirror

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/checksum"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
	"github.com/vertextoedge/cydia-mirror/internal/port"
	"github.com/vertextoedge/cydia-mirror/internal/util/pathlock"
	"github.com/vertextoedge/cydia-mirror/internal/util/permit"
)

// Config contains coordinator configuration
type Config struct {
	// Concurrency is the number of tasks allowed past the permit at once
	Concurrency int

	// FailureThreshold aborts the run once failures strictly exceed it
	FailureThreshold int

	// Startup jitter window; both zero disables the delay
	JitterMin time.Duration
	JitterMax time.Duration
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() *Config {
	return &Config{
		Concurrency:      runtime.NumCPU(),
		FailureThreshold: 5,
		JitterMin:        time.Second,
		JitterMax:        10 * time.Second,
	}
}

// VerifyFunc compares a local file against its expected checksum
type VerifyFunc func(ctx context.Context, spec domain.ChecksumSpec, path string) (bool, error)

// Coordinator runs one task per package record and aggregates outcomes
type Coordinator struct {
	config     *Config
	fs         port.FileSystem
	permits    *permit.Pool
	paths      *pathlock.Locker
	downloader *Downloader
	verify     VerifyFunc
	logger     *zap.Logger

	journal  port.Journal
	runID    string
	progress port.Progress

	wg sync.WaitGroup
}

// New creates a new Coordinator. A nil permits pool is sized from cfg.
func New(
	cfg *Config,
	client port.RepoClient,
	fs port.FileSystem,
	permits *permit.Pool,
	logger *zap.Logger,
) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		c := *cfg
		cfg = &c
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.FailureThreshold < 0 {
		cfg.FailureThreshold = 0
	}
	if cfg.JitterMax < cfg.JitterMin {
		cfg.JitterMax = cfg.JitterMin
	}
	if permits == nil {
		permits = permit.New(cfg.Concurrency)
	}

	return &Coordinator{
		config:     cfg,
		fs:         fs,
		permits:    permits,
		paths:      pathlock.New(),
		downloader: NewDownloader(client, fs, logger),
		verify:     checksum.VerifyAsync,
		logger:     logger,
	}
}

// SetJournal records every outcome under runID
func (c *Coordinator) SetJournal(journal port.Journal, runID string) {
	c.journal = journal
	c.runID = runID
}

// SetProgress reports every outcome to p
func (c *Coordinator) SetProgress(p port.Progress) {
	c.progress = p
}

// Run processes every record and returns the summary.
//
// All tasks are started immediately; only Concurrency of them hold a permit
// at any time. When failures exceed the threshold Run returns at once with
// an error wrapping domain.ErrThresholdExceeded and cancels the remaining
// tasks. Use Wait to block until they have all exited.
func (c *Coordinator) Run(ctx context.Context, records []domain.PackageRecord) (*domain.RunSummary, error) {
	summary := &domain.RunSummary{Total: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.logger.Info("starting downloads",
		zap.Int("packages", len(records)),
		zap.Int("concurrency", c.permits.Capacity()),
		zap.Int("failure_threshold", c.config.FailureThreshold))

	// Buffered so producers never block, even after Run has returned
	outcomes := make(chan domain.Outcome, len(records))

	for i := range records {
		c.wg.Add(1)
		go c.runTask(runCtx, i, records[i], outcomes)
	}

	for {
		select {
		case o := <-outcomes:
			c.aggregate(summary, &o)

			if err := ctx.Err(); err != nil {
				summary.Aborted = true
				return summary, err
			}

			if summary.Exceeds(c.config.FailureThreshold) {
				summary.Aborted = true
				c.logger.Error("failure threshold exceeded, aborting",
					zap.Int("failed", summary.Failed),
					zap.Int("threshold", c.config.FailureThreshold),
					zap.Int("outstanding", summary.Total-summary.Succeeded-summary.Failed))
				return summary, fmt.Errorf("%w: %d failed (threshold %d)",
					domain.ErrThresholdExceeded, summary.Failed, c.config.FailureThreshold)
			}

			if summary.Done() {
				c.logger.Info("downloads finished",
					zap.Int("succeeded", summary.Succeeded),
					zap.Int("skipped", summary.Skipped),
					zap.Int("failed", summary.Failed))
				return summary, nil
			}

		case <-ctx.Done():
			summary.Aborted = true
			return summary, ctx.Err()
		}
	}
}

// Wait blocks until every task started by Run has exited
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) aggregate(summary *domain.RunSummary, o *domain.Outcome) {
	summary.Add(o)

	if o.Succeeded() {
		c.logger.Debug("package finished",
			zap.String("package", o.BundleID),
			zap.String("status", o.Status))
	} else {
		c.logger.Warn("package failed",
			zap.String("package", o.BundleID),
			zap.String("filename", o.Filename),
			zap.Error(o.Err))
	}

	if c.journal != nil {
		if err := c.journal.RecordOutcome(c.runID, o); err != nil {
			c.logger.Warn("failed to record outcome", zap.Error(err))
		}
	}
	if c.progress != nil {
		c.progress.Add(o)
	}
}

// runTask processes one record and reports exactly one outcome
func (c *Coordinator) runTask(ctx context.Context, index int, rec domain.PackageRecord, outcomes chan<- domain.Outcome) {
	defer c.wg.Done()

	start := time.Now()
	o := domain.Outcome{
		Index:    index,
		BundleID: rec.BundleID,
		Filename: rec.Filename,
	}

	defer func() {
		if r := recover(); r != nil {
			o.Status = domain.OutcomeFailed
			o.Err = fmt.Errorf("task panicked: %v", r)
		}
		o.Duration = time.Since(start)
		outcomes <- o
	}()

	status, written, err := c.process(ctx, &rec)
	o.Status = status
	o.BytesWritten = written
	o.Err = err
}

func (c *Coordinator) process(ctx context.Context, rec *domain.PackageRecord) (string, int64, error) {
	if err := sleepContext(ctx, c.jitter()); err != nil {
		return domain.OutcomeFailed, 0, err
	}

	// Records sharing a destination run one after another
	unlock, err := c.paths.Lock(ctx, rec.Filename)
	if err != nil {
		return domain.OutcomeFailed, 0, err
	}
	defer unlock()

	c.logger.Debug("waiting for permit", zap.String("name", rec.DisplayName()))
	guard, err := c.permits.Acquire(ctx)
	if err != nil {
		return domain.OutcomeFailed, 0, fmt.Errorf("failed to acquire permit: %w", err)
	}
	defer guard.Release()

	localPath := c.fs.SavePath(rec.Filename)
	if c.fs.Exists(localPath) {
		match, err := c.verify(ctx, rec.Checksum, localPath)
		if err != nil {
			return domain.OutcomeFailed, 0, fmt.Errorf("failed to compute checksum: %w", err)
		}
		if match {
			c.logger.Info("checksum unchanged, skipping",
				zap.String("name", rec.DisplayName()),
				zap.String("package", rec.BundleID),
				zap.String("filename", rec.Filename))
			return domain.OutcomeSkipped, 0, nil
		}
	}

	written, err := c.downloader.Download(ctx, rec, localPath)
	if err != nil {
		return domain.OutcomeFailed, written, err
	}
	return domain.OutcomeDownloaded, written, nil
}

func (c *Coordinator) jitter() time.Duration {
	lo, hi := c.config.JitterMin, c.config.JitterMax
	if hi <= 0 {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
