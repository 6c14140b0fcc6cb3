// Package alarm turns the control state into buzzer waveforms and LED
// colours. Nothing in here sleeps: every driver is advanced by the control
// cycle with the current time.
package alarm

import (
	"time"

	"ato_controller/internal/control"
)

// Pattern is a repeating on/off buzzer waveform. The zero value is silence.
type Pattern struct {
	On  time.Duration
	Off time.Duration
}

var (
	Silent          = Pattern{}
	PatternError    = Pattern{On: 500 * time.Millisecond, Off: 500 * time.Millisecond}
	PatternRodiLow  = Pattern{On: 100 * time.Millisecond, Off: 900 * time.Millisecond}
	PatternHighTemp = Pattern{On: 200 * time.Millisecond, Off: 1800 * time.Millisecond}
)

func (p Pattern) Silent() bool { return p.On <= 0 }

// PatternFor picks the waveform for a state. Priority: error, RODI low,
// temperature above the band, silence.
func PatternFor(s control.State) Pattern {
	switch {
	case s.HasError():
		return PatternError
	case s.RodiLow:
		return PatternRodiLow
	case s.TemperatureHigh():
		return PatternHighTemp
	default:
		return Silent
	}
}
