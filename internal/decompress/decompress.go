// Package decompress decodes a downloaded package index into raw control
// text. The container format is picked from the file name.
package decompress

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// ReleaseName is the only name returned unchanged
const ReleaseName = "Release"

// Supported returns true if Decompress knows how to decode name
func Supported(name string) bool {
	_, ok := decoderFor(name)
	return ok
}

// Decompress decodes data according to the suffix of name.
// The whole input is decoded in memory; index files are small.
func Decompress(name string, data []byte) ([]byte, error) {
	decode, ok := decoderFor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFilename, name)
	}

	out, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecompress, name, err)
	}
	return out, nil
}

type decoder func([]byte) ([]byte, error)

func decoderFor(name string) (decoder, bool) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))

	switch {
	case base == ReleaseName:
		return identity, true
	case strings.HasSuffix(base, ".bz2"):
		return decodeBzip2, true
	case strings.HasSuffix(base, ".gz"):
		return decodeGzipMember, true
	case strings.HasSuffix(base, ".lzma"):
		return decodeLZMA, true
	case strings.HasSuffix(base, ".xz"):
		return decodeXZ, true
	default:
		return nil, false
	}
}

func identity(data []byte) ([]byte, error) {
	return data, nil
}

func decodeBzip2(data []byte) ([]byte, error) {
	return io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
}

// decodeGzipMember decodes only the first member of a gzip stream
func decodeGzipMember(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	zr.Multistream(false)
	return io.ReadAll(zr)
}

func decodeLZMA(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func decodeXZ(data []byte) ([]byte, error) {
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
