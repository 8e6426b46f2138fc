package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vertextoedge/cydia-mirror/internal/port"
)

// Manager handles filesystem operations under the save root
type Manager struct {
	rootDir    string
	bufferSize int
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithBufferSize(rootDir, 256*1024) // 256KB default
}

// NewManagerWithBufferSize creates a new filesystem manager with custom buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) (*Manager, error) {
	// Ensure root directory exists
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save dir: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 256 * 1024
	}

	return &Manager{
		rootDir:    rootDir,
		bufferSize: bufferSize,
	}, nil
}

// RootDir returns the save root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// SavePath returns the local path for a repository-relative path
func (m *Manager) SavePath(relPath string) string {
	return filepath.Join(m.rootDir, filepath.FromSlash(relPath))
}

// Exists checks if a regular file exists at the local path
func (m *Manager) Exists(localPath string) bool {
	info, err := os.Stat(localPath)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDir ensures the directory for a file path exists
func (m *Manager) EnsureDir(localPath string) error {
	dir := filepath.Dir(localPath)
	return os.MkdirAll(dir, 0755)
}

// Create opens the local path for writing, creating or truncating it
func (m *Manager) Create(localPath string) (io.WriteCloser, error) {
	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// CopyTo streams reader into w chunk by chunk
func (m *Manager) CopyTo(w io.Writer, reader io.Reader) (int64, error) {
	// Use configurable buffer so large packages are never held in memory
	buf := make([]byte, m.bufferSize)
	return io.CopyBuffer(w, reader, buf)
}

// WriteFile writes content to a repository-relative path
func (m *Manager) WriteFile(relPath string, reader io.Reader) (string, int64, error) {
	localPath := m.SavePath(relPath)

	// Ensure parent directory exists
	if err := m.EnsureDir(localPath); err != nil {
		return "", 0, fmt.Errorf("failed to create parent dir: %w", err)
	}

	f, err := m.Create(localPath)
	if err != nil {
		return "", 0, err
	}

	written, err := m.CopyTo(f, reader)
	if err != nil {
		f.Close()
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	return localPath, written, nil
}

// ReadFile reads a repository-relative path
func (m *Manager) ReadFile(relPath string) ([]byte, error) {
	return os.ReadFile(m.SavePath(relPath))
}

// Remove deletes a repository-relative path
func (m *Manager) Remove(relPath string) error {
	if err := os.Remove(m.SavePath(relPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
