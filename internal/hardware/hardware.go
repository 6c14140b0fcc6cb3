// Package hardware provides the board I/O the controller drives: three float
// switches, the pump relay, the buzzer, the status LED and the temperature
// probe. Backends are the GPIO character device, the 1-wire sysfs probe and
// an in-process simulator.
package hardware

import (
	"errors"
	"io"
)

var (
	ErrProbeDisconnected = errors.New("temperature probe disconnected")
	ErrProbeCRC          = errors.New("temperature probe crc mismatch")
)

// Input is a digital input already mapped to "condition present".
type Input interface {
	Read() (bool, error)
}

// Output is a digital output. Set(true) energises it.
type Output interface {
	Set(on bool) error
}

// RGB is the status LED.
type RGB interface {
	SetColor(r, g, b uint8) error
}

// Thermometer reads the water temperature in degrees Celsius. Reads may
// block for the probe's conversion time.
type Thermometer interface {
	ReadCelsius() (float64, error)
}

// Board groups the I/O of one controller. Probe is nil when no probe is
// fitted.
type Board struct {
	Sump      Input
	Emergency Input
	Rodi      Input
	Relay     Output
	Buzzer    Output
	LED       RGB
	Probe     Thermometer

	closers []io.Closer
}

// Close releases the underlying lines. Outputs are not touched; the caller
// switches them off first.
func (b *Board) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

type inputFunc func() (bool, error)

func (f inputFunc) Read() (bool, error) { return f() }

type outputFunc func(on bool) error

func (f outputFunc) Set(on bool) error { return f(on) }

type noLED struct{}

func (noLED) SetColor(_, _, _ uint8) error { return nil }
