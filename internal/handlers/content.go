package handlers

import (
	"archive/zip"
	"net/http"
	"os"
	"sync"
	"time"

	"ato_controller/internal/logger"

	"github.com/dustin/go-humanize"
)

const errContentMissing = "web content is not installed"

// ContentServer serves the web UI straight out of the installed content
// archive. The archive is reopened whenever its modification time changes,
// so a content update takes effect without a restart.
type ContentServer struct {
	path string
	log  *logger.Logger

	mu      sync.Mutex
	modTime time.Time
	archive *zip.ReadCloser
	files   http.Handler
}

func NewContentServer(path string, log *logger.Logger) *ContentServer {
	if log == nil {
		log = logger.Nop()
	}
	return &ContentServer{path: path, log: log}
}

func (s *ContentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	files, err := s.current()
	if err != nil {
		http.Error(w, errContentMissing, http.StatusServiceUnavailable)
		return
	}
	files.ServeHTTP(w, r)
}

func (s *ContentServer) current() (http.Handler, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		s.mu.Lock()
		s.closeLocked()
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files != nil && info.ModTime().Equal(s.modTime) {
		return s.files, nil
	}

	s.closeLocked()
	zr, err := zip.OpenReader(s.path)
	if err != nil {
		s.log.Errorw("content_open_failed", "path", s.path, "err", err)
		return nil, err
	}
	s.archive = zr
	s.modTime = info.ModTime()
	s.files = http.FileServer(http.FS(zr))
	s.log.Infow("content_loaded",
		"path", s.path,
		"files", len(zr.File),
		"size", humanize.Bytes(uint64(info.Size())),
	)
	return s.files, nil
}

func (s *ContentServer) closeLocked() {
	if s.archive != nil {
		_ = s.archive.Close()
	}
	s.archive = nil
	s.files = nil
	s.modTime = time.Time{}
}

// Close releases the open archive.
func (s *ContentServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}
