package updater

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"ato_controller/internal/logger"
)

// PreviousSuffix marks the image that was active before the last commit.
const PreviousSuffix = ".prev"

// Sink receives an image. Nothing becomes active before Commit; Abort
// discards everything written.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// Target is a place an image can be installed to.
type Target interface {
	Begin(size int64) (Sink, error)
	// Dir is where the bytes land, for the free space check.
	Dir() string
}

// FileTarget installs an image as a file, replacing it atomically.
type FileTarget struct {
	Path string
	Perm fs.FileMode
	Log  *logger.Logger

	syncDir func(dir string) error
}

func NewFileTarget(path string, perm fs.FileMode) *FileTarget {
	return &FileTarget{Path: path, Perm: perm}
}

func (t *FileTarget) Dir() string { return filepath.Dir(t.Path) }

func (t *FileTarget) Begin(_ int64) (Sink, error) {
	if err := os.MkdirAll(t.Dir(), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(t.Dir(), "."+filepath.Base(t.Path)+".*.tmp")
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(t.Perm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &fileSink{f: f, path: t.Path, target: t}, nil
}

// Rollback restores the previous image kept by the last commit.
func (t *FileTarget) Rollback() error {
	prev := t.Path + PreviousSuffix
	if _, err := os.Stat(prev); err != nil {
		return fmt.Errorf("no previous image: %w", err)
	}
	if err := os.Rename(prev, t.Path); err != nil {
		return err
	}
	return syncDir(t.Dir())
}

type fileSink struct {
	f      *os.File
	path   string
	target *FileTarget
	closed bool
}

func (s *fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

// Commit makes the new file durable, hard-links the current file to
// <path>.prev and renames the new file over the current one.
func (s *fileSink) Commit() error {
	tmp := s.f.Name()
	if err := s.f.Sync(); err != nil {
		_ = s.Abort()
		return err
	}
	s.closed = true
	if err := s.f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	prev := s.path + PreviousSuffix
	if err := os.Remove(prev); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Remove(tmp)
		return err
	}
	if err := os.Link(s.path, prev); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Remove(tmp)
		return fmt.Errorf("keep previous image: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return err
	}
	// The new image is active from here on; a failed directory fsync only
	// weakens durability across a power cut.
	dir := filepath.Dir(s.path)
	if err := s.target.sync(dir); err != nil {
		s.target.logger().Warnw("update_dir_sync_failed", "dir", dir, "err", err)
	}
	return nil
}

func (s *fileSink) Abort() error {
	if !s.closed {
		s.closed = true
		s.f.Close()
	}
	if err := os.Remove(s.f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (t *FileTarget) sync(dir string) error {
	if t.syncDir != nil {
		return t.syncDir(dir)
	}
	return syncDir(dir)
}

func (t *FileTarget) logger() *logger.Logger {
	if t.Log == nil {
		return logger.Nop()
	}
	return t.Log
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
