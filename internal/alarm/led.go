package alarm

import (
	"time"

	"ato_controller/internal/control"
)

// Color is an RGB triple for the status LED.
type Color struct {
	R, G, B uint8
}

var (
	ColorOff         = Color{}
	ColorStartup     = Color{255, 255, 255}
	ColorNormal      = Color{0, 255, 0}
	ColorPumping     = Color{0, 0, 255}
	ColorError       = Color{255, 0, 0}
	ColorMaintenance = Color{255, 255, 0}
	ColorRodiLow     = Color{255, 0, 255}
	ColorSumpLow     = Color{255, 80, 0}
	ColorUpdate      = Color{255, 105, 180}
)

// LEDColor maps a state to its colour. Priority: error, maintenance, pumping,
// RODI low, sump low, normal.
func LEDColor(s control.State) Color {
	switch {
	case s.HasError():
		return ColorError
	case s.Maintenance:
		return ColorMaintenance
	case s.Pumping:
		return ColorPumping
	case s.RodiLow:
		return ColorRodiLow
	case s.SumpLow:
		return ColorSumpLow
	default:
		return ColorNormal
	}
}

const DefaultBlinkPeriod = 200 * time.Millisecond

// Blinker alternates the update colour with off while an update runs.
type Blinker struct {
	period time.Duration
	lit    bool
	last   time.Time
}

func NewBlinker(period time.Duration) *Blinker {
	if period <= 0 {
		period = DefaultBlinkPeriod
	}
	return &Blinker{period: period}
}

// Color returns the colour to show at now.
func (b *Blinker) Color(now time.Time) Color {
	if now.Sub(b.last) >= b.period {
		b.lit = !b.lit
		b.last = now
	}
	if b.lit {
		return ColorUpdate
	}
	return ColorOff
}
