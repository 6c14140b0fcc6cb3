package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ato_controller/internal/logger"
	"ato_controller/internal/metrics"
	"ato_controller/internal/models"
	"ato_controller/internal/state"
	"ato_controller/internal/updater"
)

var (
	ErrUpdateInProgress  = errors.New("an update is already in progress")
	ErrNoUpdateAvailable = errors.New("no update available")
)

// ManifestChecker fetches and publishes the release manifest.
type ManifestChecker interface {
	Check(ctx context.Context) (models.Availability, error)
}

// Applier installs one image.
type Applier interface {
	Apply(ctx context.Context, kind updater.Kind, url string) error
}

// ContentRecorder stores the version of an installed content image.
type ContentRecorder interface {
	SetInstalledContentVersion(v string) error
}

type UpdateOptions struct {
	Checker      ManifestChecker
	Applier      Applier
	Shared       *state.Shared
	Content      ContentRecorder
	Events       EventSink
	Metrics      *metrics.Collector
	Schedule     string
	CheckTimeout time.Duration
	// Restart is called RestartDelay after a firmware image was installed.
	Restart      func()
	RestartDelay time.Duration
	Now          func() time.Time
	Log          *logger.Logger
}

// UpdateService runs manifest checks on a schedule and at most one update
// task at a time. The task is detached from the request that started it.
type UpdateService struct {
	checker  ManifestChecker
	applier  Applier
	shared   *state.Shared
	content  ContentRecorder
	events   EventSink
	metrics  *metrics.Collector
	schedule string
	timeout  time.Duration
	restart  func()
	delay    time.Duration
	now      func() time.Time
	log      *logger.Logger

	mu      sync.Mutex
	task    *updater.Task
	settled chan struct{}
	cron    *cron.Cron
}

func NewUpdateService(opts UpdateOptions) *UpdateService {
	u := &UpdateService{
		checker:  opts.Checker,
		applier:  opts.Applier,
		shared:   opts.Shared,
		content:  opts.Content,
		events:   opts.Events,
		metrics:  opts.Metrics,
		schedule: opts.Schedule,
		timeout:  opts.CheckTimeout,
		restart:  opts.Restart,
		delay:    opts.RestartDelay,
		now:      opts.Now,
		log:      opts.Log,
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.log == nil {
		u.log = logger.Nop()
	}
	if u.timeout <= 0 {
		u.timeout = 30 * time.Second
	}
	return u
}

// PublishProgress returns an updater observer that mirrors session progress
// into the shared update status.
func PublishProgress(shared *state.Shared) func(updater.Progress) {
	return func(p updater.Progress) {
		shared.PublishUpdate(func(u *models.UpdateStatus) {
			u.Phase = string(p.Phase)
			u.BytesExpected = p.BytesExpected
			u.BytesWritten = p.BytesWritten
		})
	}
}

// Check fetches the manifest now.
func (u *UpdateService) Check(ctx context.Context) (models.Availability, error) {
	before := u.shared.Availability()
	a, err := u.checker.Check(ctx)
	u.metrics.RecordManifestCheck(err == nil)
	if err != nil {
		return a, err
	}
	if (a.Firmware && a.FirmwareVersion != before.FirmwareVersion) || (a.Content && a.ContentVersion != before.ContentVersion) {
		u.emit(models.EventUpdateCheck, "Update available", map[string]any{
			"firmware_available": a.Firmware,
			"firmware_version":   a.FirmwareVersion,
			"content_available":  a.Content,
			"content_version":    a.ContentVersion,
		})
	}
	return a, nil
}

// Apply starts an update task for the pending firmware, or the pending
// content when the firmware is current. It returns once the task started.
func (u *UpdateService) Apply(ctx context.Context) (updater.Kind, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.task != nil && !u.task.Finished() {
		return "", ErrUpdateInProgress
	}

	a := u.shared.Availability()
	var (
		kind          updater.Kind
		version, link string
	)
	switch {
	case a.Firmware:
		kind, version, link = updater.KindFirmware, a.FirmwareVersion, a.FirmwareURL
	case a.Content:
		kind, version, link = updater.KindContent, a.ContentVersion, a.ContentURL
	default:
		return "", ErrNoUpdateAvailable
	}

	started := u.now()
	u.shared.PublishUpdate(func(s *models.UpdateStatus) {
		s.InProgress = true
		s.Kind = string(kind)
		s.Version = version
		s.Phase = string(updater.PhaseDownloading)
		s.BytesExpected = -1
		s.BytesWritten = 0
		s.StartedAt = started
		s.FinishedAt = time.Time{}
		s.LastError = ""
	})
	u.log.Infow("update_requested", "kind", kind, "version", version)
	u.emit(models.EventUpdateStart, "Update started: "+string(kind)+" "+version, map[string]any{"kind": kind, "version": version})

	t := updater.Go(kind, version, link, started, func() error {
		return u.applier.Apply(context.Background(), kind, link)
	})
	settled := make(chan struct{})
	u.task, u.settled = t, settled
	go u.await(t, settled)
	return kind, nil
}

func (u *UpdateService) await(t *updater.Task, settled chan struct{}) {
	defer close(settled)
	<-t.Done()
	err := t.Err()
	finished := u.now()

	result := models.UpdateResultOK
	if err != nil {
		result = models.UpdateResultFailed
	}

	var written int64
	u.shared.PublishUpdate(func(s *models.UpdateStatus) {
		s.InProgress = false
		s.FinishedAt = finished
		s.LastResult = result
		written = s.BytesWritten
		if err != nil {
			s.LastError = err.Error()
			return
		}
		switch t.Kind {
		case updater.KindFirmware:
			s.Availability.Firmware = false
		case updater.KindContent:
			s.Availability.Content = false
		}
	})
	u.metrics.RecordUpdate(string(t.Kind), result, written)

	if err != nil {
		u.log.Errorw("update_task_failed", "kind", t.Kind, "version", t.Version, "err", err)
		u.emit(models.EventUpdateFailed, "Update failed: "+err.Error(), map[string]any{"kind": t.Kind, "version": t.Version})
		return
	}

	u.log.Infow("update_task_done", "kind", t.Kind, "version", t.Version, "took", finished.Sub(t.StartedAt))
	u.emit(models.EventUpdateDone, "Update installed: "+string(t.Kind)+" "+t.Version, map[string]any{"kind": t.Kind, "version": t.Version})

	switch t.Kind {
	case updater.KindContent:
		if u.content != nil {
			if err := u.content.SetInstalledContentVersion(t.Version); err != nil {
				u.log.Errorw("content_version_write_failed", "err", err)
			}
		}
	case updater.KindFirmware:
		if u.restart != nil {
			u.log.Infow("restart_scheduled", "delay", u.delay)
			time.AfterFunc(u.delay, u.restart)
		}
	}
}

// Wait blocks until the running task, if any, finished and was recorded.
func (u *UpdateService) Wait() {
	u.mu.Lock()
	settled := u.settled
	u.mu.Unlock()
	if settled != nil {
		<-settled
	}
}

func (u *UpdateService) Status() models.UpdateStatus {
	return u.shared.Update()
}

// Active reports whether an update task is running.
func (u *UpdateService) Active() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.task != nil && !u.task.Finished()
}

// Start checks once in the background and then on the configured schedule.
func (u *UpdateService) Start(ctx context.Context) error {
	c := cron.New()
	if u.schedule != "" {
		if _, err := c.AddFunc(u.schedule, func() { u.scheduledCheck(ctx) }); err != nil {
			return err
		}
	}
	c.Start()

	u.mu.Lock()
	u.cron = c
	u.mu.Unlock()

	go u.scheduledCheck(ctx)
	return nil
}

// Stop halts the schedule and waits for a running check to return.
func (u *UpdateService) Stop() {
	u.mu.Lock()
	c := u.cron
	u.cron = nil
	u.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (u *UpdateService) scheduledCheck(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if _, err := u.Check(ctx); err != nil {
		u.log.Debugw("scheduled_check_failed", "err", err)
	}
}

func (u *UpdateService) emit(typ, msg string, meta map[string]any) {
	if u.events == nil {
		return
	}
	u.events.Event(models.Event{OccurredAt: u.now(), Type: typ, Description: msg, Metadata: meta})
}
