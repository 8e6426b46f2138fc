// Package archive packs a mirrored tree into a single zip file.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

type entry struct {
	path string
	name string
	info fs.FileInfo
}

// Build writes every regular file under root into a deflate-compressed zip
// at dest. Entry names are slash-separated paths relative to root.
// Returns the number of entries written. On failure dest is removed; the
// files under root are never modified.
func Build(ctx context.Context, root, dest string) (int, error) {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrArchive, err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrArchive, err)
	}

	count, err := build(ctx, root, absDest, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %v", domain.ErrArchive, cerr)
	}
	if err != nil {
		os.Remove(dest)
		return 0, err
	}
	return count, nil
}

func build(ctx context.Context, root, absDest string, out io.Writer) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	entries := make(chan entry, 64)

	// Walker
	g.Go(func() error {
		defer close(entries)
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && abs == absDest {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}

			select {
			case entries <- entry{path: path, name: filepath.ToSlash(rel), info: info}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	// Writer
	count := 0
	g.Go(func() error {
		zw := zip.NewWriter(out)
		for e := range entries {
			if err := addFile(zw, e); err != nil {
				return err
			}
			count++
		}
		return zw.Close()
	})

	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrArchive, err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, e entry) error {
	header, err := zip.FileInfoHeader(e.info)
	if err != nil {
		return err
	}
	header.Name = e.name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}
	return nil
}
