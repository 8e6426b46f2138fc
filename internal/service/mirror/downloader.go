package mirror

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// Downloader streams a single package to disk
type Downloader struct {
	client port.RepoClient
	fs     port.FileSystem
	logger *zap.Logger
}

// NewDownloader creates a new Downloader
func NewDownloader(client port.RepoClient, fs port.FileSystem, logger *zap.Logger) *Downloader {
	return &Downloader{
		client: client,
		fs:     fs,
		logger: logger,
	}
}

// Download fetches rec and writes it to localPath, replacing any existing file.
// Returns the number of bytes written.
func (d *Downloader) Download(ctx context.Context, rec *domain.PackageRecord, localPath string) (int64, error) {
	url := d.client.URL(rec.Filename)
	d.logger.Info("downloading package",
		zap.String("name", rec.DisplayName()),
		zap.String("package", rec.BundleID),
		zap.String("url", url),
		zap.String("filename", rec.Filename))

	body, err := d.client.Open(ctx, rec.Filename)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer body.Close()

	// A failure here surfaces again, more clearly, when the file is opened
	if err := d.fs.EnsureDir(localPath); err != nil {
		d.logger.Error("failed to create parent directory",
			zap.String("path", localPath),
			zap.Error(err))
	}

	f, err := d.fs.Create(localPath)
	if err != nil {
		return 0, err
	}

	written, err := d.fs.CopyTo(f, &contextReader{ctx: ctx, r: body})
	if err != nil {
		f.Close()
		d.removePartial(rec.Filename)
		return written, fmt.Errorf("write %s: %w", rec.Filename, err)
	}

	if err := f.Close(); err != nil {
		d.removePartial(rec.Filename)
		return written, fmt.Errorf("close %s: %w", rec.Filename, err)
	}

	d.logger.Info("package downloaded",
		zap.String("name", rec.DisplayName()),
		zap.Int64("size", written))
	return written, nil
}

func (d *Downloader) removePartial(relPath string) {
	if err := d.fs.Remove(relPath); err != nil {
		d.logger.Warn("failed to remove partial download",
			zap.String("filename", relPath),
			zap.Error(err))
	}
}

// contextReader stops a copy at the next chunk once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
