package fs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

type (
	// File is a local file about to be uploaded.
	File struct {
		Dir          string
		Absolute     string
		Name         string
		Size         int64
		LastModified time.Time
	}
)

func NewFile(absolutePath string, size int64, lastModified time.Time) *File {
	return &File{
		Dir:          filepath.Dir(absolutePath),
		Absolute:     absolutePath,
		Name:         filepath.Base(absolutePath),
		Size:         size,
		LastModified: lastModified,
	}
}

// FromPath resolves path without touching the disk. Whether the file exists is
// left to the engine that reads it.
func FromPath(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", path)
	}
	return NewFile(abs, 0, time.Time{}), nil
}

// Stat resolves path and fills in size and modification time. Directories are
// rejected.
func Stat(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to stat %s", abs)
	}
	if info.IsDir() {
		return nil, eris.Errorf("%s is a directory", abs)
	}
	return NewFile(abs, info.Size(), info.ModTime()), nil
}

// FromOSFile describes an already opened file.
func FromOSFile(f *os.File) (*File, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, eris.Wrapf(err, "failed to stat %s", f.Name())
	}
	abs, err := filepath.Abs(f.Name())
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", f.Name())
	}
	return NewFile(abs, info.Size(), info.ModTime()), nil
}

func (f *File) IsOlderThan(other *File) bool {
	return f.LastModified.Before(other.LastModified)
}
