package main

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/adapter/filesystem"
	"github.com/vertextoedge/cydia-mirror/internal/adapter/repo"
	"github.com/vertextoedge/cydia-mirror/internal/adapter/sqlite"
	"github.com/vertextoedge/cydia-mirror/internal/archive"
	"github.com/vertextoedge/cydia-mirror/internal/catalog"
	"github.com/vertextoedge/cydia-mirror/internal/config"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
	"github.com/vertextoedge/cydia-mirror/internal/logger"
	"github.com/vertextoedge/cydia-mirror/internal/progress"
	"github.com/vertextoedge/cydia-mirror/internal/service/metadata"
	"github.com/vertextoedge/cydia-mirror/internal/service/mirror"
)

// runMirror performs one complete mirror run
func runMirror(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.GetZapLogger()
	log.Info("starting cydia-mirror",
		zap.String("version", version),
		zap.String("repository", cfg.Repository.URL),
		zap.String("save_dir", cfg.Repository.SaveDir))

	fsManager, err := filesystem.NewManager(cfg.Repository.SaveDir)
	if err != nil {
		return err
	}

	usage, err := fsManager.CheckFreeSpace(cfg.Download.GetMinFreeBytes())
	switch {
	case errors.Is(err, domain.ErrInsufficientSpace):
		return err
	case err != nil:
		log.Warn("failed to read disk usage", zap.Error(err))
	default:
		log.Info("save directory disk usage",
			zap.Uint64("free_bytes", usage.Free),
			zap.Float64("used_pct", usage.UsedPct))
	}

	client, err := repo.NewClient(cfg.Repository.URL, cfg.Identity.ToIdentity(), cfg.Download.ToClientConfig())
	if err != nil {
		return err
	}

	// Metadata
	fetcher := metadata.New(&metadata.Config{Candidates: cfg.Repository.Candidates}, client, fsManager, log)
	if err := fetcher.FetchRelease(ctx); err != nil {
		log.Warn("release file unavailable, continuing", zap.Error(err))
	}

	index, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	records, err := catalog.New(cfg.Catalog.StrictEncoding, log).Parse(index.Index)
	if err != nil {
		return err
	}
	log.Info("package index parsed",
		zap.String("index", index.Selected),
		zap.Int("packages", len(records)))

	// Downloads
	coordinator := mirror.New(&mirror.Config{
		Concurrency:      cfg.Download.Workers,
		FailureThreshold: cfg.Download.MaxFailCount,
		JitterMin:        cfg.Download.GetJitterMin(),
		JitterMax:        cfg.Download.GetJitterMax(),
	}, client, fsManager, nil, log)

	journal, runID := openJournal(cfg, index.Selected, len(records), log)
	if journal != nil {
		defer journal.Close()
		coordinator.SetJournal(journal, runID)
	}

	var bar *progress.Reporter
	if cfg.Download.Progress {
		bar = progress.New(out, len(records))
		coordinator.SetProgress(bar)
	}

	summary, runErr := coordinator.Run(ctx, records)
	if bar != nil {
		bar.Finish()
	}
	// Let cancelled tasks close their files before anything else touches the tree
	coordinator.Wait()

	if journal != nil {
		if err := journal.FinishRun(runID, summary, runErr); err != nil {
			log.Warn("failed to finish journal run", zap.Error(err))
		}
	}

	log.Info("mirror finished",
		zap.Int("packages", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Bool("aborted", summary.Aborted))

	if runErr != nil {
		return runErr
	}

	if cfg.Archive.Enabled {
		dest := cfg.ArchivePath()
		log.Info("packing mirror", zap.String("archive", dest))
		n, err := archive.Build(ctx, cfg.Repository.SaveDir, dest)
		if err != nil {
			return err
		}
		log.Info("mirror packed", zap.String("archive", dest), zap.Int("files", n))
	}

	return nil
}

// openJournal opens the run journal. A journal that cannot be opened is
// logged and skipped; it never fails the run.
func openJournal(cfg *config.Config, indexFile string, total int, log *zap.Logger) (*sqlite.Store, string) {
	path := cfg.JournalPath()
	if path == "" {
		return nil, ""
	}

	store, err := sqlite.Open(path)
	if err != nil {
		log.Warn("failed to open journal, continuing without it", zap.String("path", path), zap.Error(err))
		return nil, ""
	}

	runID, err := store.StartRun(cfg.Repository.URL, cfg.Repository.SaveDir, indexFile, total)
	if err != nil {
		log.Warn("failed to start journal run, continuing without it", zap.Error(err))
		store.Close()
		return nil, ""
	}

	log.Info("journal opened", zap.String("path", path), zap.String("run_id", runID))
	return store, runID
}
