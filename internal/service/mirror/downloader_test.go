package mirror

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/adapter/filesystem"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

func TestDownloader_Download(t *testing.T) {
	client := newFakeClient()
	client.files["debs/nested/dir/a.deb"] = []byte("package bytes")

	fs, err := filesystem.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := NewDownloader(client, fs, zap.NewNop())

	rec := &domain.PackageRecord{BundleID: "a", Name: "A", Filename: "debs/nested/dir/a.deb"}
	written, err := d.Download(context.Background(), rec, fs.SavePath(rec.Filename))
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if written != int64(len("package bytes")) {
		t.Errorf("written = %d", written)
	}

	got, err := os.ReadFile(fs.SavePath(rec.Filename))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "package bytes" {
		t.Errorf("content = %q", got)
	}
}

func TestDownloader_ReplacesExisting(t *testing.T) {
	client := newFakeClient()
	client.files["a.deb"] = []byte("new")

	fs, err := filesystem.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fs.SavePath("a.deb"), []byte("much longer old content"), 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDownloader(client, fs, zap.NewNop())
	rec := &domain.PackageRecord{BundleID: "a", Name: "A", Filename: "a.deb"}
	if _, err := d.Download(context.Background(), rec, fs.SavePath(rec.Filename)); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	got, _ := os.ReadFile(fs.SavePath("a.deb"))
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestDownloader_NotFound(t *testing.T) {
	fs, err := filesystem.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := NewDownloader(newFakeClient(), fs, zap.NewNop())

	rec := &domain.PackageRecord{BundleID: "missing", Name: "Missing", Filename: "missing.deb"}
	_, err = d.Download(context.Background(), rec, fs.SavePath(rec.Filename))

	var statusErr *domain.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Download() error = %v, want *domain.StatusError", err)
	}
	if statusErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
	if fs.Exists(fs.SavePath(rec.Filename)) {
		t.Error("failed download created a file")
	}
}

func TestDownloader_CancelledCopyRemovesPartial(t *testing.T) {
	client := newFakeClient()
	client.files["a.deb"] = []byte("data")

	fs, err := filesystem.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := NewDownloader(client, fs, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &domain.PackageRecord{BundleID: "a", Name: "A", Filename: "a.deb"}
	_, err = d.Download(ctx, rec, fs.SavePath(rec.Filename))
	if err == nil {
		t.Fatal("Download() with cancelled context should fail")
	}
	if fs.Exists(fs.SavePath(rec.Filename)) {
		t.Error("partial file left on disk")
	}
}
