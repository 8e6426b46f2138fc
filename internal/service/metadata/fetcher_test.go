package metadata

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vertextoedge/cydia-mirror/internal/adapter/filesystem"
	"github.com/vertextoedge/cydia-mirror/internal/adapter/repo"
	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// bzip2 of "Package: com.example.tweak\nName: Tweak\nFilename: debs/tweak.deb\n\n"
const bz2Index = "425a68393141592653591f4efca20000085f80001040018010010144003eafccc0" +
	"20005450000064c823493d3283d23436a31bd4a4a25e75f189867540f6c68556a1c3d8f020915bd3117fee" +
	"8293a76447e443e2ee48a70a1203e9df9440"

const bz2IndexText = "Package: com.example.tweak\nName: Tweak\nFilename: debs/tweak.deb\n\n"

type fakeRepo struct {
	mu       sync.Mutex
	files    map[string][]byte
	requests []string
}

func (r *fakeRepo) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		name := strings.TrimPrefix(req.URL.Path, "/")
		r.mu.Lock()
		r.requests = append(r.requests, name)
		data, ok := r.files[name]
		r.mu.Unlock()
		if !ok {
			http.NotFound(w, req)
			return
		}
		w.Write(data)
	})
}

func newFetcher(t *testing.T, files map[string][]byte) (*Fetcher, *fakeRepo, *filesystem.Manager) {
	t.Helper()
	fr := &fakeRepo{files: files}
	srv := httptest.NewServer(fr.handler(t))
	t.Cleanup(srv.Close)

	client, err := repo.NewClient(srv.URL, repo.Identity{CydiaID: "id", Firmware: "14.7", Machine: "iPhone11,1", UniqueID: "id"},
		&repo.ClientConfig{HTTPClient: srv.Client()})
	require.NoError(t, err)

	fs, err := filesystem.NewManager(t.TempDir())
	require.NoError(t, err)

	return New(nil, client, fs, zap.NewNop()), fr, fs
}

func gzipOf(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetcher_LastSuccessWins(t *testing.T) {
	bz2, err := hex.DecodeString(bz2Index)
	require.NoError(t, err)

	f, fr, fs := newFetcher(t, map[string][]byte{
		"Packages.gz":  gzipOf(t, "Package: from.gzip\nName: G\nFilename: g.deb\n"),
		"Packages.bz2": bz2,
	})

	result, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Packages.gz", "Packages.bz2"}, result.Succeeded)
	assert.Equal(t, "Packages.bz2", result.Selected)
	assert.Equal(t, bz2IndexText, string(result.Index))

	// Every candidate is attempted, in order, even after successes
	assert.Equal(t, DefaultCandidates, fr.requests)

	// The compressed index stays on disk under its original name
	assert.True(t, fs.Exists(fs.SavePath("Packages.bz2")))
	assert.True(t, fs.Exists(fs.SavePath("Packages.gz")))
}

func TestFetcher_RemovesStaleCandidates(t *testing.T) {
	f, _, fs := newFetcher(t, map[string][]byte{
		"Packages.gz": gzipOf(t, "Package: a\nName: A\nFilename: a.deb\n"),
	})

	// Left over from a previous run; now 404 upstream
	require.NoError(t, os.WriteFile(fs.SavePath("Packages.xz"), []byte("stale"), 0644))

	result, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Packages.gz", result.Selected)
	assert.False(t, fs.Exists(fs.SavePath("Packages.xz")))
}

func TestFetcher_UncompressedIndexIsRejected(t *testing.T) {
	f, _, fs := newFetcher(t, map[string][]byte{
		"Packages": []byte("Package: a\nName: A\nFilename: a.deb\n"),
	})

	_, err := f.Fetch(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidFilename)

	// The download itself is kept on disk
	assert.True(t, fs.Exists(fs.SavePath("Packages")))
}

func TestFetcher_NoCandidateSucceeds(t *testing.T) {
	f, fr, _ := newFetcher(t, map[string][]byte{})

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoUsableIndex)
	assert.Contains(t, err.Error(), AlternateIndexPath)
	assert.Len(t, fr.requests, len(DefaultCandidates))
}

func TestFetcher_DecodeFailureIsFatal(t *testing.T) {
	f, _, _ := newFetcher(t, map[string][]byte{
		"Packages.xz": []byte("not xz at all"),
	})

	_, err := f.Fetch(context.Background())
	assert.True(t, errors.Is(err, domain.ErrDecompress), "got %v", err)
}

func TestFetcher_CustomCandidates(t *testing.T) {
	f, fr, _ := newFetcher(t, map[string][]byte{
		"Packages.gz": gzipOf(t, "Package: a\n"),
	})
	f.config.Candidates = []string{"Packages.gz"}

	result, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Package: a\n", string(result.Index))
	assert.Equal(t, []string{"Packages.gz"}, fr.requests)
}

func TestFetcher_CancelStopsCandidateLoop(t *testing.T) {
	f, _, _ := newFetcher(t, map[string][]byte{
		"Packages.gz": gzipOf(t, "Package: a\n"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.tryCandidate(ctx, "Packages.gz")
	require.Error(t, err)
	assert.False(t, domain.IsSkippable(err))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = f.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetcher_MissingCandidateIsSkippable(t *testing.T) {
	f, _, _ := newFetcher(t, map[string][]byte{})

	err := f.tryCandidate(context.Background(), "Packages.xz")
	assert.True(t, domain.IsSkippable(err))
	assert.ErrorIs(t, err, domain.ErrUnexpectedStatus)
}

func TestNew_DoesNotModifyConfig(t *testing.T) {
	cfg := &Config{}
	f := New(cfg, nil, nil, zap.NewNop())

	assert.Nil(t, cfg.Candidates)
	assert.Equal(t, DefaultCandidates, f.config.Candidates)
}

func TestFetcher_FetchRelease(t *testing.T) {
	f, _, fs := newFetcher(t, map[string][]byte{
		"Release": []byte("Origin: Example\nLabel: Example\n"),
	})

	require.NoError(t, f.FetchRelease(context.Background()))

	data, err := fs.ReadFile("Release")
	require.NoError(t, err)
	assert.Equal(t, "Origin: Example\nLabel: Example\n", string(data))
}

func TestFetcher_FetchReleaseMissing(t *testing.T) {
	f, _, _ := newFetcher(t, map[string][]byte{})

	err := f.FetchRelease(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnexpectedStatus)
}
