package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend persists store snapshots.
type Backend interface {
	Save(data []byte) error
	Load() ([]byte, error)
	Close() error
}

// FileBackend keeps the snapshot in a JSON file.
type FileBackend struct {
	Path string
}

// NewFileBackend creates a file backend writing to path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{Path: path}
}

// Save writes data atomically via a temporary file.
func (b *FileBackend) Save(data []byte) error {
	if b.Path == "" {
		return nil
	}

	dir := filepath.Dir(b.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	f, err := os.CreateTemp(dir, filepath.Base(b.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("chmod file: %w", err)
	}
	if err := os.Rename(tmp, b.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file yields nil data.
func (b *FileBackend) Load() ([]byte, error) {
	if b.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(b.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Close is a no-op for files.
func (b *FileBackend) Close() error {
	return nil
}

var _ Backend = (*FileBackend)(nil)
