package port

import (
	"context"
	"io"
)

// RepoClient fetches files relative to the repository root
type RepoClient interface {
	// URL resolves a repository-relative path
	URL(relPath string) string

	// Fetch reads a small file fully into memory
	Fetch(ctx context.Context, relPath string) ([]byte, error)

	// Open issues a GET and returns the body of a 2xx response.
	// Non-2xx responses are returned as *domain.StatusError.
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
}
