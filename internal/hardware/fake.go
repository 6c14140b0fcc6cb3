package hardware

import "sync"

// Fake is an in-memory board for tests of the packages that drive hardware.
type Fake struct {
	mu sync.Mutex

	SumpLow       bool
	EmergencyHigh bool
	RodiLow       bool
	ReadErr       error

	Celsius  float64
	ProbeErr error

	RelayOn  bool
	BuzzerOn bool
	Color    [3]uint8
	RelayLog []bool
	ColorLog [][3]uint8
	WriteErr error
}

func (f *Fake) Board() *Board {
	return &Board{
		Sump:      inputFunc(func() (bool, error) { return f.input(func() bool { return f.SumpLow }) }),
		Emergency: inputFunc(func() (bool, error) { return f.input(func() bool { return f.EmergencyHigh }) }),
		Rodi:      inputFunc(func() (bool, error) { return f.input(func() bool { return f.RodiLow }) }),
		Relay: outputFunc(func(on bool) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.RelayOn = on
			f.RelayLog = append(f.RelayLog, on)
			return f.WriteErr
		}),
		Buzzer: outputFunc(func(on bool) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.BuzzerOn = on
			return f.WriteErr
		}),
		LED:   fakeLED{f},
		Probe: fakeProbe{f},
	}
}

// Update applies fn under the fake's lock.
func (f *Fake) Update(fn func(f *Fake)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// Relay reports the relay output and how many times it was written.
func (f *Fake) Relay() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RelayOn, len(f.RelayLog)
}

func (f *Fake) Buzzer() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.BuzzerOn
}

func (f *Fake) LEDColor() [3]uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Color
}

func (f *Fake) input(fn func() bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return false, f.ReadErr
	}
	return fn(), nil
}

type fakeLED struct{ f *Fake }

func (l fakeLED) SetColor(r, g, b uint8) error {
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	l.f.Color = [3]uint8{r, g, b}
	l.f.ColorLog = append(l.f.ColorLog, l.f.Color)
	return nil
}

type fakeProbe struct{ f *Fake }

func (p fakeProbe) ReadCelsius() (float64, error) {
	p.f.mu.Lock()
	defer p.f.mu.Unlock()
	return p.f.Celsius, p.f.ProbeErr
}
