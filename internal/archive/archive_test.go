package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "mirror")
	files := map[string]string{
		"Release":             "Origin: Example\n",
		"Packages.bz2":        "compressed",
		"debs/a.deb":          "aaaa",
		"debs/nested/b.deb":   "bbbb",
		"pool/main/c/c_1.deb": "cccc",
	}
	writeTree(t, root, files)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	dest := filepath.Join(dir, "mirror.zip")
	n, err := Build(context.Background(), root, dest)
	require.NoError(t, err)
	assert.Equal(t, len(files), n)

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	seen := make(map[string]int)
	for _, f := range zr.File {
		seen[f.Name]++
		assert.Equal(t, zip.Deflate, f.Method, f.Name)

		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, files[f.Name], string(data), f.Name)
	}

	for name := range files {
		assert.Equal(t, 1, seen[name], "entry %s", name)
	}
	assert.Len(t, seen, len(files))
}

func TestBuild_SkipsDestinationInsideRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.deb": "a"})

	n, err := Build(context.Background(), root, filepath.Join(root, "out.zip"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuild_MissingRoot(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")

	_, err := Build(context.Background(), filepath.Join(dir, "nope"), dest)
	assert.ErrorIs(t, err, domain.ErrArchive)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "failed archive should be removed")
}

func TestBuild_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.deb": "a", "b.deb": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, root, filepath.Join(t.TempDir(), "out.zip"))
	assert.ErrorIs(t, err, domain.ErrArchive)
}
