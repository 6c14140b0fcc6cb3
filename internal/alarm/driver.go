package alarm

import (
	"time"
)

// Buzzer is the output the driver toggles.
type Buzzer interface {
	Set(on bool) error
}

const (
	DefaultBurstBeeps = 10
	DefaultBeepLength = 100 * time.Millisecond
)

// Driver plays a Pattern on a buzzer, one Tick at a time. A burst, once
// started, overrides the pattern until all of its beeps are played.
type Driver struct {
	buzzer     Buzzer
	on         bool
	lastToggle time.Time

	burstBeeps int
	beepLength time.Duration
	// burstLeft counts remaining half periods of the current burst.
	burstLeft int
	burstLast time.Time
}

func NewDriver(b Buzzer, beeps int, beepLength time.Duration) *Driver {
	if beeps <= 0 {
		beeps = DefaultBurstBeeps
	}
	if beepLength <= 0 {
		beepLength = DefaultBeepLength
	}
	return &Driver{buzzer: b, burstBeeps: beeps, beepLength: beepLength}
}

// Burst starts a short beep sequence. It restarts one that is still playing.
func (d *Driver) Burst(now time.Time) error {
	d.burstLeft = 2*d.burstBeeps - 1
	d.burstLast = now
	return d.set(true, now)
}

// Bursting reports whether a burst is still playing.
func (d *Driver) Bursting() bool { return d.burstLeft > 0 }

// Tick advances the buzzer to now under pattern p.
func (d *Driver) Tick(now time.Time, p Pattern) error {
	if d.burstLeft > 0 {
		if now.Sub(d.burstLast) < d.beepLength {
			return nil
		}
		d.burstLeft--
		d.burstLast = now
		return d.set(!d.on, now)
	}

	if p.Silent() {
		return d.set(false, now)
	}

	elapsed := now.Sub(d.lastToggle)
	switch {
	case d.on && elapsed > p.On:
		return d.set(false, now)
	case !d.on && elapsed > p.Off:
		return d.set(true, now)
	}
	return nil
}

// Off silences the buzzer and abandons a running burst.
func (d *Driver) Off() error {
	d.burstLeft = 0
	return d.set(false, time.Time{})
}

// On reports the current buzzer output.
func (d *Driver) On() bool { return d.on }

func (d *Driver) set(on bool, now time.Time) error {
	if on == d.on {
		return nil
	}
	d.on = on
	d.lastToggle = now
	return d.buzzer.Set(on)
}
