package port

import (
	"io"
)

// FileSystem defines the interface for save-root filesystem operations
type FileSystem interface {
	// RootDir returns the save root directory
	RootDir() string

	// SavePath returns the local path for a repository-relative path
	SavePath(relPath string) string

	// Exists checks if a regular file exists at the local path
	Exists(localPath string) bool

	// EnsureDir creates the parent directory of a local path
	EnsureDir(localPath string) error

	// Create opens the local path for writing, creating or truncating it
	Create(localPath string) (io.WriteCloser, error)

	// CopyTo streams reader into w using the manager's buffer
	// Returns: bytes written, error
	CopyTo(w io.Writer, reader io.Reader) (int64, error)

	// WriteFile writes content to a repository-relative path in one go
	// Returns: local path, bytes written, error
	WriteFile(relPath string, reader io.Reader) (string, int64, error)

	// ReadFile reads a repository-relative path
	ReadFile(relPath string) ([]byte, error)

	// Remove deletes a repository-relative path; a missing file is not an error
	Remove(relPath string) error
}

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space available to this process, in bytes
	UsedPct float64 // Used percentage (0-100)
}
