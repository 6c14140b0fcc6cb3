// Package updater downloads, verifies and installs signed images. An image
// only replaces the installed one after its SHA-256 digest has been checked
// against the release signature; every failure leaves the old image active.
package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"

	"ato_controller/internal/logger"
)

const (
	DefaultSpaceMargin  = 4096
	DefaultChunkSize    = 4096
	DefaultMaxImageSize = 64 << 20
	maxSignatureSize    = 4096
	minChunkSize        = 1 << 10
	maxChunkSize        = 32 << 10
	progressStep        = 64 << 10
)

// Strategy decides where bytes go while the signature is still unchecked.
type Strategy int

const (
	// Staged downloads into the spool and copies to the target only after
	// verification. The target is untouched until then.
	Staged Strategy = iota
	// Direct streams into the target sink and aborts it on failure. Used for
	// targets whose Sink keeps the active image until Commit.
	Direct
)

type Destination struct {
	Target   Target
	Strategy Strategy
}

// Timeouts bound every network step.
type Timeouts struct {
	Request   time.Duration
	Download  time.Duration
	Signature time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Request:   10 * time.Second,
		Download:  5 * time.Minute,
		Signature: 10 * time.Second,
	}
}

type Options struct {
	Client       *http.Client
	Verifier     Verifier
	Space        SpaceChecker
	Spool        *Spool
	Destinations map[Kind]Destination
	Timeouts     Timeouts
	SpaceMargin  int64
	MaxImageSize int64
	ChunkSize    int
	// Observer receives a copy of the session on every phase change and
	// periodically while bytes stream.
	Observer func(Progress)
	Now      func() time.Time
	Log      *logger.Logger
}

type Updater struct {
	client       *http.Client
	verifier     Verifier
	space        SpaceChecker
	spool        *Spool
	destinations map[Kind]Destination
	timeouts     Timeouts
	margin       int64
	maxImage     int64
	chunk        int
	observe      func(Progress)
	now          func() time.Time
	log          *logger.Logger
}

func New(opts Options) (*Updater, error) {
	if opts.Verifier == nil {
		return nil, errors.New("updater: verifier is required")
	}
	if len(opts.Destinations) == 0 {
		return nil, errors.New("updater: no destinations")
	}
	for kind, d := range opts.Destinations {
		if d.Target == nil {
			return nil, fmt.Errorf("updater: %s has no target", kind)
		}
		if d.Strategy == Staged && opts.Spool == nil {
			return nil, fmt.Errorf("updater: %s is staged but no spool is configured", kind)
		}
	}

	u := &Updater{
		client:       opts.Client,
		verifier:     opts.Verifier,
		space:        opts.Space,
		spool:        opts.Spool,
		destinations: opts.Destinations,
		timeouts:     opts.Timeouts,
		margin:       opts.SpaceMargin,
		maxImage:     opts.MaxImageSize,
		chunk:        opts.ChunkSize,
		observe:      opts.Observer,
		now:          opts.Now,
		log:          opts.Log,
	}
	def := DefaultTimeouts()
	if u.timeouts.Request <= 0 {
		u.timeouts.Request = def.Request
	}
	if u.timeouts.Download <= 0 {
		u.timeouts.Download = def.Download
	}
	if u.timeouts.Signature <= 0 {
		u.timeouts.Signature = def.Signature
	}
	if u.client == nil {
		u.client = &http.Client{}
	}
	if u.space == nil {
		u.space = DiskSpace{}
	}
	if u.margin <= 0 {
		u.margin = DefaultSpaceMargin
	}
	if u.maxImage <= 0 {
		u.maxImage = DefaultMaxImageSize
	}
	if u.chunk < minChunkSize || u.chunk > maxChunkSize {
		u.chunk = DefaultChunkSize
	}
	if u.observe == nil {
		u.observe = func(Progress) {}
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.log == nil {
		u.log = logger.Nop()
	}
	return u, nil
}

// Apply installs the image at imageURL as kind. The signature is fetched
// from imageURL + ".sig".
func (u *Updater) Apply(ctx context.Context, kind Kind, imageURL string) (err error) {
	dest, ok := u.destinations[kind]
	if !ok {
		return fmt.Errorf("%w: no destination for %s", ErrStorage, kind)
	}

	s := newSession(kind, imageURL, u.now())
	log := u.log.With("kind", kind, "url", redact(imageURL))
	log.Infow("update_started", "strategy", dest.Strategy)

	defer func() {
		if err != nil {
			s.Reason = err.Error()
			u.setPhase(s, PhaseFailed)
			log.Errorw("update_failed", "bytes", humanize.Bytes(uint64(s.BytesWritten)), "err", err)
			return
		}
		u.setPhase(s, PhaseDone)
		log.Infow("update_installed", "size", humanize.Bytes(uint64(s.BytesWritten)))
	}()

	if dest.Strategy == Direct {
		return u.applyDirect(ctx, s, dest.Target)
	}
	return u.applyStaged(ctx, s, dest.Target)
}

func (u *Updater) applyStaged(ctx context.Context, s *session, target Target) error {
	u.setPhase(s, PhaseDownloading)
	body, size, done, err := u.openImage(ctx, s.URL)
	if err != nil {
		return err
	}
	defer done()
	s.BytesExpected = size

	spool, err := u.spool.Create()
	if err != nil {
		return fmt.Errorf("%w: create staging file: %w", ErrStorage, err)
	}
	defer spool.Discard()

	if err := u.ensureSpace(u.spool.Dir(), size); err != nil {
		return err
	}
	if err := u.ensureSpace(target.Dir(), size); err != nil {
		return err
	}
	if err := u.stream(s, body, spool, size); err != nil {
		return err
	}
	done()

	sig, err := u.fetchSignature(ctx, s)
	if err != nil {
		return err
	}
	if err := u.verify(s, sig); err != nil {
		return err
	}

	u.setPhase(s, PhaseFlashing)
	r, err := spool.Rewind()
	if err != nil {
		return fmt.Errorf("%w: rewind staging file: %w", ErrStorage, err)
	}
	sink, err := target.Begin(s.BytesWritten)
	if err != nil {
		return fmt.Errorf("%w: open target: %w", ErrStorage, err)
	}
	if _, err := io.CopyBuffer(sink, io.LimitReader(r, s.BytesWritten), make([]byte, u.chunk)); err != nil {
		_ = sink.Abort()
		return fmt.Errorf("%w: write target: %w", ErrStorage, err)
	}
	if err := sink.Commit(); err != nil {
		return fmt.Errorf("%w: commit target: %w", ErrStorage, err)
	}
	return nil
}

// applyDirect fetches the small signature first so a missing one costs no
// image download.
func (u *Updater) applyDirect(ctx context.Context, s *session, target Target) error {
	sig, err := u.fetchSignature(ctx, s)
	if err != nil {
		return err
	}

	u.setPhase(s, PhaseDownloading)
	body, size, done, err := u.openImage(ctx, s.URL)
	if err != nil {
		return err
	}
	defer done()
	s.BytesExpected = size

	if err := u.ensureSpace(target.Dir(), size); err != nil {
		return err
	}
	sink, err := target.Begin(size)
	if err != nil {
		return fmt.Errorf("%w: open target: %w", ErrStorage, err)
	}
	if err := u.stream(s, body, sink, size); err != nil {
		_ = sink.Abort()
		return err
	}
	if err := u.verify(s, sig); err != nil {
		_ = sink.Abort()
		return err
	}

	u.setPhase(s, PhaseFlashing)
	if err := sink.Commit(); err != nil {
		return fmt.Errorf("%w: commit target: %w", ErrStorage, err)
	}
	return nil
}

// openImage issues the image request. size is -1 when the server sends no
// Content-Length. done releases the connection and may be called twice.
func (u *Updater) openImage(ctx context.Context, imageURL string) (io.Reader, int64, func(), error) {
	resp, cancel, err := u.get(ctx, imageURL, u.timeouts.Download)
	if err != nil {
		return nil, 0, nil, err
	}
	done := func() {
		resp.Body.Close()
		cancel()
	}
	size := resp.ContentLength
	if size > u.maxImage {
		done()
		return nil, 0, nil, fmt.Errorf("%w: image of %s exceeds limit %s",
			ErrStorage, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(u.maxImage)))
	}
	return resp.Body, size, done, nil
}

func (u *Updater) fetchSignature(ctx context.Context, s *session) ([]byte, error) {
	u.setPhase(s, PhaseDownloadingSignature)
	resp, cancel, err := u.get(ctx, s.URL+SignatureSuffix, u.timeouts.Signature)
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	sig, err := io.ReadAll(io.LimitReader(resp.Body, maxSignatureSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read signature: %w", ErrNetwork, err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrVerification)
	}
	if len(sig) > maxSignatureSize {
		return nil, fmt.Errorf("%w: signature larger than %d bytes", ErrVerification, maxSignatureSize)
	}
	return sig, nil
}

// get performs a GET bounded by total. Until the response headers arrive the
// shorter request timeout applies as well.
func (u *Updater) get(ctx context.Context, rawURL string, total time.Duration) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(ctx, total)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: build request: %w", ErrNetwork, err)
	}

	headers := time.AfterFunc(u.timeouts.Request, cancel)
	resp, err := u.client.Do(req)
	headers.Stop()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("%w: GET %s: %w", ErrNetwork, redact(rawURL), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, nil, fmt.Errorf("%w: GET %s: %s", ErrNetwork, redact(rawURL), resp.Status)
	}
	return resp, cancel, nil
}

func (u *Updater) ensureSpace(dir string, size int64) error {
	free, err := u.space.Free(dir)
	if err != nil {
		return fmt.Errorf("%w: free space of %s: %w", ErrStorage, dir, err)
	}
	need := u.margin
	if size > 0 {
		need += size
	}
	if free < uint64(need) {
		return fmt.Errorf("%w: %s needs %s, %s free",
			ErrStorage, dir, humanize.Bytes(uint64(need)), humanize.Bytes(free))
	}
	return nil
}

// stream copies body into w chunk by chunk, through the session digest. A
// body shorter than announced is a network failure; one longer than the
// limit is refused.
func (u *Updater) stream(s *session, body io.Reader, w io.Writer, size int64) error {
	limit := u.maxImage
	if size >= 0 {
		limit = size
	}
	src := io.LimitReader(body, limit+1)
	buf := make([]byte, u.chunk)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if s.BytesWritten+int64(n) > limit {
				if size >= 0 {
					return fmt.Errorf("%w: body longer than announced %d bytes", ErrNetwork, size)
				}
				return fmt.Errorf("%w: image exceeds limit %s", ErrStorage, humanize.Bytes(uint64(u.maxImage)))
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: write image: %w", ErrStorage, err)
			}
			s.Write(buf[:n])
			u.maybeReport(s)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("%w: read image: %w", ErrNetwork, rerr)
		}
	}
	if size >= 0 && s.BytesWritten != size {
		return fmt.Errorf("%w: short body, got %d of %d bytes", ErrNetwork, s.BytesWritten, size)
	}
	return nil
}

func (u *Updater) verify(s *session, sig []byte) error {
	u.setPhase(s, PhaseVerifying)
	if err := u.verifier.Verify(s.sum(), sig); err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}
	return nil
}

func (u *Updater) setPhase(s *session, p Phase) {
	s.Phase = p
	s.reported = s.BytesWritten
	u.observe(s.Progress)
}

func (u *Updater) maybeReport(s *session) {
	step := int64(progressStep)
	if s.BytesExpected > 0 && s.BytesExpected/20 > step {
		step = s.BytesExpected / 20
	}
	if s.BytesWritten-s.reported >= step {
		s.reported = s.BytesWritten
		u.observe(s.Progress)
	}
}

// redact drops credentials from URLs before they reach the log.
func redact(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return parsed.Redacted()
}
