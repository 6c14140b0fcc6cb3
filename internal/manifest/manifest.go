// Package manifest fetches the update manifest and works out which images
// are newer than the installed ones. It never starts an update.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"ato_controller/internal/logger"
	"ato_controller/internal/models"
)

const (
	DefaultTimeout = 5 * time.Second
	maxDocument    = 64 << 10
)

var ErrBadStatus = errors.New("unexpected manifest status")

// Document is the manifest as served:
//
//	{"firmware": {"version": "1.0.1", "url": "..."}, "frontend": {"version": "3", "url": "..."}}
type Document struct {
	Firmware Entry `json:"firmware"`
	Frontend Entry `json:"frontend"`
}

type Entry struct {
	Version string `json:"version"`
	URL     string `json:"url"`
}

func (d Document) Manifest() models.Manifest {
	return models.Manifest{
		FirmwareVersion: d.Firmware.Version,
		FirmwareURL:     d.Firmware.URL,
		ContentVersion:  d.Frontend.Version,
		ContentURL:      d.Frontend.URL,
	}
}

// Evaluate derives availability: an image is offered when the manifest names
// a version different from the installed one and a URL to fetch it from.
func Evaluate(m models.Manifest, runningFirmware, installedContent string) models.Availability {
	var a models.Availability
	if m.FirmwareVersion != "" && m.FirmwareURL != "" && m.FirmwareVersion != runningFirmware {
		a.Firmware = true
		a.FirmwareVersion = m.FirmwareVersion
		a.FirmwareURL = m.FirmwareURL
	}
	if m.ContentVersion != "" && m.ContentURL != "" && m.ContentVersion != installedContent {
		a.Content = true
		a.ContentVersion = m.ContentVersion
		a.ContentURL = m.ContentURL
	}
	return a
}

// Publisher receives check results.
type Publisher interface {
	SetManifest(m models.Manifest, a models.Availability, at time.Time)
	RecordCheckError(err error, at time.Time)
}

// Config describes where the manifest lives.
type Config struct {
	URL             string
	Username        string
	Password        string
	Timeout         time.Duration
	FirmwareVersion string
}

// Checker fetches and evaluates the manifest.
type Checker struct {
	cfg     Config
	client  *http.Client
	content func() string
	pub     Publisher
	now     func() time.Time
	log     *logger.Logger
}

// NewChecker builds a checker. content returns the installed content
// version at the time of each check.
func NewChecker(cfg Config, client *http.Client, content func() string, pub Publisher, log *logger.Logger) *Checker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	if content == nil {
		content = func() string { return "" }
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Checker{cfg: cfg, client: client, content: content, pub: pub, now: time.Now, log: log}
}

// Check fetches the manifest, publishes it and returns the availability.
// On failure the previously published manifest stays in place.
func (c *Checker) Check(ctx context.Context) (models.Availability, error) {
	doc, err := c.fetch(ctx)
	now := c.now()
	if err != nil {
		c.pub.RecordCheckError(err, now)
		c.log.Warnw("manifest_check_failed", "url", c.cfg.URL, "err", err)
		return models.Availability{}, err
	}

	m := doc.Manifest()
	a := Evaluate(m, c.cfg.FirmwareVersion, c.content())
	c.pub.SetManifest(m, a, now)
	c.log.Infow("manifest_checked",
		"firmware", m.FirmwareVersion, "firmware_available", a.Firmware,
		"content", m.ContentVersion, "content_available", a.Content)
	return a, nil
}

func (c *Checker) fetch(ctx context.Context) (Document, error) {
	var doc Document
	if c.cfg.URL == "" {
		return doc, errors.New("manifest url not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL, nil)
	if err != nil {
		return doc, fmt.Errorf("build manifest request: %w", err)
	}
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return doc, fmt.Errorf("fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return doc, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocument)).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode manifest: %w", err)
	}
	return doc, nil
}
