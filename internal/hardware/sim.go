package hardware

import (
	"context"
	"sync"
	"time"
)

// Water model constants. Levels are percent of the usable range.
const (
	SimAmbientC            = 25.0
	SimTopOffC             = 20.0 // RODI water temperature
	SimEvaporationPerSec   = 0.05
	SimPumpFillPerSec      = 1.0
	SimReservoirPerSumpPct = 0.5
	SimAmbientDriftPerSec  = 0.002
	SimTopOffCoolPerSec    = 0.01

	SimSumpLowBelow      = 40.0
	SimSumpHighAbove     = 95.0
	SimReservoirLowBelow = 10.0
)

// SimSnapshot is a copy of the simulated tank.
type SimSnapshot struct {
	SumpPct      float64
	ReservoirPct float64
	TempC        float64
	Relay        bool
	Buzzer       bool
	Color        [3]uint8
}

// Simulator models the sump, the RODI reservoir and the water temperature so
// the daemon can run without hardware. Evaporation lowers the sump, the relay
// moves water from the reservoir into the sump and cools it a little.
type Simulator struct {
	mu         sync.Mutex
	sump       float64
	reservoir  float64
	temp       float64
	relay      bool
	buzzer     bool
	color      [3]uint8
	probeFault bool
	updatedAt  time.Time
}

func NewSimulator() *Simulator {
	return &Simulator{
		sump:      50,
		reservoir: 100,
		temp:      SimAmbientC + 0.5,
	}
}

// Run advances the model at the given interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.mu.Lock()
			if s.updatedAt.IsZero() {
				s.updatedAt = now
				s.mu.Unlock()
				continue
			}
			s.advance(now.Sub(s.updatedAt).Seconds())
			s.updatedAt = now
			s.mu.Unlock()
		}
	}
}

// Advance moves the model forward by elapsed seconds.
func (s *Simulator) Advance(elapsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(elapsed)
}

func (s *Simulator) advance(elapsed float64) {
	s.sump = clamp(s.sump-SimEvaporationPerSec*elapsed, 0, 100)

	if s.relay && s.reservoir > 0 {
		fill := minFloat(SimPumpFillPerSec*elapsed, s.reservoir/SimReservoirPerSumpPct)
		s.sump = clamp(s.sump+fill, 0, 100)
		s.reservoir = clamp(s.reservoir-fill*SimReservoirPerSumpPct, 0, 100)
		s.temp = towards(s.temp, SimTopOffC, SimTopOffCoolPerSec*elapsed)
		return
	}
	s.temp = towards(s.temp, SimAmbientC, SimAmbientDriftPerSec*elapsed)
}

// Board exposes the model through the same interfaces as real hardware.
func (s *Simulator) Board() *Board {
	return &Board{
		Sump:      inputFunc(func() (bool, error) { return s.read(func() bool { return s.sump < SimSumpLowBelow }), nil }),
		Emergency: inputFunc(func() (bool, error) { return s.read(func() bool { return s.sump > SimSumpHighAbove }), nil }),
		Rodi:      inputFunc(func() (bool, error) { return s.read(func() bool { return s.reservoir < SimReservoirLowBelow }), nil }),
		Relay:     outputFunc(func(on bool) error { s.write(func() { s.relay = on }); return nil }),
		Buzzer:    outputFunc(func(on bool) error { s.write(func() { s.buzzer = on }); return nil }),
		LED:       simLED{s},
		Probe:     simProbe{s},
	}
}

// SetLevels overrides the sump and reservoir levels.
func (s *Simulator) SetLevels(sumpPct, reservoirPct float64) {
	s.write(func() {
		s.sump = clamp(sumpPct, 0, 100)
		s.reservoir = clamp(reservoirPct, 0, 100)
	})
}

// SetTemperature overrides the water temperature.
func (s *Simulator) SetTemperature(c float64) {
	s.write(func() { s.temp = c })
}

// SetProbeFault makes probe reads fail until cleared.
func (s *Simulator) SetProbeFault(fault bool) {
	s.write(func() { s.probeFault = fault })
}

func (s *Simulator) Snapshot() SimSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SimSnapshot{
		SumpPct:      s.sump,
		ReservoirPct: s.reservoir,
		TempC:        s.temp,
		Relay:        s.relay,
		Buzzer:       s.buzzer,
		Color:        s.color,
	}
}

func (s *Simulator) read(fn func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Simulator) write(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

type simLED struct{ s *Simulator }

func (l simLED) SetColor(r, g, b uint8) error {
	l.s.write(func() { l.s.color = [3]uint8{r, g, b} })
	return nil
}

type simProbe struct{ s *Simulator }

func (p simProbe) ReadCelsius() (float64, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.s.probeFault {
		return 0, ErrProbeDisconnected
	}
	return p.s.temp, nil
}

func towards(v, target, step float64) float64 {
	if v > target {
		return maxFloat(v-step, target)
	}
	return minFloat(v+step, target)
}

func clamp(v, lo, hi float64) float64 {
	return maxFloat(lo, minFloat(v, hi))
}

func maxFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a <= b {
		return a
	}
	return b
}
