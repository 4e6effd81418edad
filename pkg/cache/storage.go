package cache

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

// Storage is the filesystem the cache reads sources from and persists
// artifacts to.
type Storage interface {
	ReadFile(path string) ([]byte, error)
	// WriteFile must replace path atomically: concurrent readers see either
	// the old content or the new content, never a partial write.
	WriteFile(path string, data []byte) error
	Exists(path string) bool
	ModTime(path string) (time.Time, error)
	Remove(path string) error
	List(dir string) ([]fs.FileInfo, error)
}

// DiskStorage is the Storage backed by the local filesystem.
type DiskStorage struct{}

// ReadFile reads the file at path.
func (DiskStorage) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a temporary file next to path and renames it into
// place, creating the parent directory when needed.
func (DiskStorage) WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Exists reports whether a regular file exists at path.
func (DiskStorage) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ModTime returns the modification time of path.
func (DiskStorage) ModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Remove deletes path. A missing file is not an error.
func (DiskStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the regular files directly inside dir. A missing directory
// lists as empty.
func (DiskStorage) List(dir string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}
