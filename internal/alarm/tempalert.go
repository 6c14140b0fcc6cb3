package alarm

import "time"

const DefaultTempAlertRepeat = 5 * time.Minute

// TempAlert decides when an out-of-band temperature earns a beep burst: when
// the excursion starts, then at most once per repeat interval while it lasts.
// Coming back into the band re-arms it.
type TempAlert struct {
	repeat time.Duration
	active bool
	last   time.Time
}

func NewTempAlert(repeat time.Duration) *TempAlert {
	if repeat <= 0 {
		repeat = DefaultTempAlertRepeat
	}
	return &TempAlert{repeat: repeat}
}

// Observe feeds one valid reading and reports whether a burst should play.
func (a *TempAlert) Observe(temp, minTemp, maxTemp float64, now time.Time) bool {
	if temp >= minTemp && temp <= maxTemp {
		a.active = false
		return false
	}
	if !a.active || now.Sub(a.last) >= a.repeat {
		a.active = true
		a.last = now
		return true
	}
	return false
}
