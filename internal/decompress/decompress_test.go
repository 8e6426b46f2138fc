package decompress

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

const control = "Package: com.example.tweak\nName: Tweak\nFilename: debs/tweak.deb\n\n"

// bzip2 of control; the standard library has no bzip2 encoder
const controlBzip2Hex = "425a68393141592653591f4efca20000085f80001040018010010144003eafccc0" +
	"20005450000064c823493d3283d23436a31bd4a4a25e75f189867540f6c68556a1c3d8f020915bd3117fee" +
	"8293a76447e443e2ee48a70a1203e9df9440"

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func xzBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func lzmaBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecompress_Formats(t *testing.T) {
	bz2, err := hex.DecodeString(controlBzip2Hex)
	require.NoError(t, err)

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{name: "bzip2", file: "Packages.bz2", data: bz2},
		{name: "gzip", file: "Packages.gz", data: gzipBytes(t, control)},
		{name: "xz", file: "pkg/foo.xz", data: xzBytes(t, control)},
		{name: "lzma", file: "Packages.lzma", data: lzmaBytes(t, control)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decompress(tt.file, tt.data)
			require.NoError(t, err)
			assert.Equal(t, control, string(got))
		})
	}
}

func TestDecompress_ReleaseUnchanged(t *testing.T) {
	// Not valid in any container format; must be returned as-is
	raw := []byte{0x00, 0xff, 'O', 'r', 'i', 'g', 'i', 'n'}

	got, err := Decompress("Release", raw)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecompress_InvalidFilename(t *testing.T) {
	for _, name := range []string{"Packages", "pkg/foo.tar", "Packages.zst", "Release.gpg", ""} {
		_, err := Decompress(name, []byte("data"))
		assert.ErrorIs(t, err, domain.ErrInvalidFilename, name)
		assert.False(t, Supported(name), name)
	}
}

func TestDecompress_GzipFirstMemberOnly(t *testing.T) {
	first := gzipBytes(t, "first member\n")
	second := gzipBytes(t, "second member\n")

	got, err := Decompress("Packages.gz", append(first, second...))
	require.NoError(t, err)
	assert.Equal(t, "first member\n", string(got))
}

func TestDecompress_CorruptInput(t *testing.T) {
	for _, name := range []string{"Packages.gz", "Packages.xz", "Packages.bz2", "Packages.lzma"} {
		_, err := Decompress(name, []byte("definitely not compressed"))
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, domain.ErrDecompress), "%s: %v", name, err)
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("Release"))
	assert.True(t, Supported("dists/stable/Packages.xz"))
	assert.False(t, Supported("Packages.txt"))
}
