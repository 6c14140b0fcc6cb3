package updater

import (
	"io"
	"os"
	"path/filepath"
)

const spoolPattern = "image-*.part"

// Spool stages downloads on disk until their signature checks out.
type Spool struct {
	dir string
}

func NewSpool(dir string) *Spool { return &Spool{dir: dir} }

func (s *Spool) Dir() string { return s.dir }

// Create opens a fresh staging file.
func (s *Spool) Create() (*SpoolFile, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.dir, spoolPattern)
	if err != nil {
		return nil, err
	}
	return &SpoolFile{f: f}, nil
}

// Clean removes staging files left behind by an interrupted update.
func (s *Spool) Clean() error {
	matches, err := filepath.Glob(filepath.Join(s.dir, spoolPattern))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}

type SpoolFile struct {
	f *os.File
}

func (s *SpoolFile) Write(p []byte) (int, error) { return s.f.Write(p) }

// Rewind positions the file for reading back what was written.
func (s *SpoolFile) Rewind() (io.Reader, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return s.f, nil
}

// Discard closes and deletes the staging file.
func (s *SpoolFile) Discard() error {
	s.f.Close()
	return os.Remove(s.f.Name())
}
