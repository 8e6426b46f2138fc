// Package checksum verifies package files on disk against the digest
// declared in the package index.
package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/vertextoedge/cydia-mirror/internal/domain"
)

// Verify hashes the file at path and reports whether it matches spec.
// A spec without an algorithm never matches.
func Verify(spec domain.ChecksumSpec, path string) (bool, error) {
	var h hash.Hash
	switch spec.Algorithm {
	case domain.ChecksumMD5:
		h = md5.New()
	case domain.ChecksumSHA1:
		h = sha1.New()
	case domain.ChecksumSHA256:
		h = sha256.New()
	case domain.ChecksumNone:
		return false, nil
	default:
		return false, fmt.Errorf("unsupported checksum algorithm %v", spec.Algorithm)
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	actual := hex.EncodeToString(h.Sum(nil))
	return strings.EqualFold(actual, strings.TrimSpace(spec.Digest)), nil
}

type result struct {
	match bool
	err   error
}

// VerifyAsync runs Verify on its own goroutine and waits for it, returning
// early with ctx.Err() if the context is cancelled first. The abandoned
// goroutine still hashes to EOF before exiting; done is buffered so it
// never blocks.
func VerifyAsync(ctx context.Context, spec domain.ChecksumSpec, path string) (bool, error) {
	done := make(chan result, 1)
	go func() {
		match, err := Verify(spec, path)
		done <- result{match: match, err: err}
	}()

	select {
	case r := <-done:
		return r.match, r.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
