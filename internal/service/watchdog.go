package service

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"ato_controller/internal/logger"
)

// Watchdog reports liveness to systemd. Ping is called from the control
// cycle so a stuck cycle stops the pings and lets systemd restart the unit.
type Watchdog struct {
	interval time.Duration
	last     time.Time
	log      *logger.Logger
}

// NewWatchdog returns nil when the unit has no WatchdogSec configured or the
// process does not run under systemd; every method is nil-safe.
func NewWatchdog(log *logger.Logger) *Watchdog {
	if log == nil {
		log = logger.Nop()
	}
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warnw("watchdog_env_invalid", "err", err)
		return nil
	}
	if interval <= 0 {
		return nil
	}
	log.Infow("watchdog_enabled", "interval", interval)
	return &Watchdog{interval: interval / 2, log: log}
}

// Ready tells systemd that startup finished.
func Ready(log *logger.Logger) {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil && log != nil {
		log.Warnw("sd_notify_failed", "state", "ready", "err", err)
	} else if sent && log != nil {
		log.Debugw("sd_notify_sent", "state", "ready")
	}
}

// Stopping tells systemd that shutdown started.
func Stopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Ping sends WATCHDOG=1 at most once per half interval.
func (w *Watchdog) Ping(now time.Time) {
	if w == nil || now.Sub(w.last) < w.interval {
		return
	}
	w.last = now
	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		w.log.Warnw("sd_notify_failed", "state", "watchdog", "err", err)
	}
}
