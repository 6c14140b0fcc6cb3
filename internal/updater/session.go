package updater

import (
	"crypto/sha256"
	"hash"
	"time"
)

// Kind names an updatable image.
type Kind string

const (
	KindFirmware Kind = "firmware"
	KindContent  Kind = "content"
)

// Phase of an update session.
type Phase string

const (
	PhaseDownloading          Phase = "downloading"
	PhaseDownloadingSignature Phase = "downloading_signature"
	PhaseVerifying            Phase = "verifying"
	PhaseFlashing             Phase = "flashing"
	PhaseDone                 Phase = "done"
	PhaseFailed               Phase = "failed"
)

// Progress is the observable part of a session.
type Progress struct {
	Kind          Kind
	URL           string
	Phase         Phase
	Reason        string
	BytesExpected int64
	BytesWritten  int64
	StartedAt     time.Time
}

// session is owned by one Apply call. Written bytes go through the running
// SHA-256 so the digest is ready as soon as the body ends.
type session struct {
	Progress
	digest   hash.Hash
	reported int64
}

func newSession(kind Kind, url string, now time.Time) *session {
	return &session{
		Progress: Progress{
			Kind:          kind,
			URL:           url,
			BytesExpected: -1,
			StartedAt:     now,
		},
		digest: sha256.New(),
	}
}

// Write feeds the digest and counts bytes. It never fails.
func (s *session) Write(p []byte) (int, error) {
	s.digest.Write(p)
	s.BytesWritten += int64(len(p))
	return len(p), nil
}

func (s *session) sum() []byte { return s.digest.Sum(nil) }
