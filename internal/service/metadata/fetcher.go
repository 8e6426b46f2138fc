// Package metadata downloads the repository's Release file and package
// index and returns the decoded index text.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/decompress"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// DefaultCandidates is the download order: uncompressed first, then compressed variants
var DefaultCandidates = []string{
	"Packages",
	"Packages.xz",
	"Packages.gz",
	"Packages.bz2",
	"Packages.lzma",
}

// AlternateIndexPath is suggested when no candidate is found at the root
const AlternateIndexPath = "dists/stable/main/binary-iphoneos-arm"

// Config contains fetcher configuration
type Config struct {
	Candidates []string
}

// Result describes the index chosen for decoding
type Result struct {
	// Succeeded lists every candidate that was stored, in attempt order
	Succeeded []string

	// Selected is the candidate that was decoded
	Selected string

	// Index is the decoded control text
	Index []byte
}

// Fetcher tries metadata candidates and decodes the selected one
type Fetcher struct {
	config *Config
	client port.RepoClient
	fs     port.FileSystem
	logger *zap.Logger
}

// New creates a new Fetcher
func New(cfg *Config, client port.RepoClient, fs port.FileSystem, logger *zap.Logger) *Fetcher {
	config := Config{}
	if cfg != nil {
		config = *cfg
	}
	if len(config.Candidates) == 0 {
		config.Candidates = DefaultCandidates
	}
	return &Fetcher{
		config: &config,
		client: client,
		fs:     fs,
		logger: logger,
	}
}

// FetchRelease stores the Release file. Failure is not fatal to a run;
// callers log the returned error.
func (f *Fetcher) FetchRelease(ctx context.Context) error {
	f.logger.Info("downloading release file")

	data, err := f.client.Fetch(ctx, decompress.ReleaseName)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", decompress.ReleaseName, err)
	}
	if _, _, err := f.fs.WriteFile(decompress.ReleaseName, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store %s: %w", decompress.ReleaseName, err)
	}

	f.logger.Info("release file downloaded", zap.Int("bytes", len(data)))
	return nil
}

// Fetch tries every candidate, then decodes the last one that succeeded.
//
// The last success wins even when an earlier, preferred format was also
// stored.
func (f *Fetcher) Fetch(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, name := range f.config.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := f.tryCandidate(ctx, name); err != nil {
			if !domain.IsSkippable(err) {
				return nil, err
			}
			f.logger.Warn("index candidate failed", zap.Error(err))
			continue
		}

		result.Succeeded = append(result.Succeeded, name)
		f.logger.Info("index candidate downloaded", zap.String("file", name))
	}

	if len(result.Succeeded) == 0 {
		return nil, fmt.Errorf("%w (tried %s); you could try %s",
			domain.ErrNoUsableIndex,
			strings.Join(f.config.Candidates, ", "),
			f.client.URL(AlternateIndexPath))
	}

	result.Selected = result.Succeeded[len(result.Succeeded)-1]
	f.logger.Info("decoding package index",
		zap.String("file", result.Selected),
		zap.Strings("available", result.Succeeded))

	raw, err := f.fs.ReadFile(result.Selected)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", result.Selected, err)
	}

	index, err := decompress.Decompress(result.Selected, raw)
	if err != nil {
		return nil, err
	}
	result.Index = index

	return result, nil
}

// tryCandidate downloads one candidate, replacing any stale local copy
func (f *Fetcher) tryCandidate(ctx context.Context, name string) error {
	if err := f.fs.Remove(name); err != nil {
		f.logger.Debug("failed to remove stale index file",
			zap.String("file", name),
			zap.Error(err))
	}

	f.logger.Info("trying index candidate", zap.String("file", name))

	data, err := f.client.Fetch(ctx, name)
	if err != nil {
		// A cancelled context stops the candidate loop
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return domain.NewSkippableError(err, name)
	}

	if _, _, err := f.fs.WriteFile(name, bytes.NewReader(data)); err != nil {
		return domain.NewSkippableError(err, name)
	}
	return nil
}
