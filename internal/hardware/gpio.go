package hardware

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"ato_controller/internal/config"
)

const consumer = "atod"

// OpenGPIO requests every configured line from the GPIO character device.
// Inputs get the pull-up the float switches expect, outputs start inactive.
func OpenGPIO(cfg config.HardwareConfig) (*Board, error) {
	b := &Board{LED: noLED{}}
	ok := false
	defer func() {
		if !ok {
			_ = b.Close()
		}
	}()

	var err error
	if b.Sump, err = b.requestInput(cfg.Chip, "sump", cfg.Sump); err != nil {
		return nil, err
	}
	if b.Emergency, err = b.requestInput(cfg.Chip, "emergency", cfg.Emergency); err != nil {
		return nil, err
	}
	if b.Rodi, err = b.requestInput(cfg.Chip, "rodi", cfg.Rodi); err != nil {
		return nil, err
	}
	if b.Relay, err = b.requestOutput(cfg.Chip, "relay", cfg.Relay); err != nil {
		return nil, err
	}
	if b.Buzzer, err = b.requestOutput(cfg.Chip, "buzzer", cfg.Buzzer); err != nil {
		return nil, err
	}

	if cfg.LED.Enabled {
		led := &gpioLED{}
		if led.r, err = b.requestOutput(cfg.Chip, "led_red", cfg.LED.Red); err != nil {
			return nil, err
		}
		if led.g, err = b.requestOutput(cfg.Chip, "led_green", cfg.LED.Green); err != nil {
			return nil, err
		}
		if led.b, err = b.requestOutput(cfg.Chip, "led_blue", cfg.LED.Blue); err != nil {
			return nil, err
		}
		b.LED = led
	}

	if cfg.W1Device != "" {
		b.Probe = NewW1Thermometer(cfg.W1Device)
	}

	ok = true
	return b, nil
}

func lineOptions(pin config.Pin, opts ...gpiocdev.LineReqOption) []gpiocdev.LineReqOption {
	opts = append(opts, gpiocdev.WithConsumer(consumer))
	if pin.ActiveLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}
	return opts
}

func (b *Board) requestInput(chip, name string, pin config.Pin) (Input, error) {
	l, err := gpiocdev.RequestLine(chip, pin.Line, lineOptions(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)...)
	if err != nil {
		return nil, fmt.Errorf("request %s input line %d: %w", name, pin.Line, err)
	}
	b.closers = append(b.closers, l)
	return inputFunc(func() (bool, error) {
		v, err := l.Value()
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}
		return v == 1, nil
	}), nil
}

func (b *Board) requestOutput(chip, name string, pin config.Pin) (Output, error) {
	l, err := gpiocdev.RequestLine(chip, pin.Line, lineOptions(pin, gpiocdev.AsOutput(0))...)
	if err != nil {
		return nil, fmt.Errorf("request %s output line %d: %w", name, pin.Line, err)
	}
	b.closers = append(b.closers, l)
	return outputFunc(func(on bool) error {
		v := 0
		if on {
			v = 1
		}
		if err := l.SetValue(v); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}), nil
}

// gpioLED drives a common-cathode RGB LED from three plain outputs, so each
// channel is either fully on or off.
type gpioLED struct {
	r, g, b Output
}

func (l *gpioLED) SetColor(r, g, b uint8) error {
	if err := l.r.Set(r >= 128); err != nil {
		return err
	}
	if err := l.g.Set(g >= 128); err != nil {
		return err
	}
	return l.b.Set(b >= 128)
}
