package sensor

import (
	"context"
	"time"

	"ato_controller/internal/control"
	"ato_controller/internal/hardware"
	"ato_controller/internal/logger"
)

// DS18B20 measuring range.
const (
	minPlausibleC = -55.0
	maxPlausibleC = 125.0
)

// TemperatureSampler reads the probe on its own goroutine and hands the
// newest sample to the control cycle through a one-slot channel, so a slow
// conversion never stalls the cycle.
type TemperatureSampler struct {
	probe    hardware.Thermometer
	interval time.Duration
	now      func() time.Time
	out      chan control.Sample
	log      *logger.Logger
}

func NewTemperatureSampler(probe hardware.Thermometer, interval time.Duration, now func() time.Time, log *logger.Logger) *TemperatureSampler {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TemperatureSampler{
		probe:    probe,
		interval: interval,
		now:      now,
		out:      make(chan control.Sample, 1),
		log:      log,
	}
}

// Samples is drained by the control cycle.
func (s *TemperatureSampler) Samples() <-chan control.Sample { return s.out }

// Run samples immediately and then every interval until ctx is canceled.
func (s *TemperatureSampler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	s.publish(s.Sample())
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.publish(s.Sample())
		}
	}
}

// Sample performs one blocking probe read.
func (s *TemperatureSampler) Sample() control.Sample {
	v, err := s.probe.ReadCelsius()
	smp := control.Sample{Value: v, At: s.now(), Valid: true}
	switch {
	case err != nil:
		s.log.Warnw("temperature_read_failed", "err", err)
		smp.Valid = false
	case v < minPlausibleC || v > maxPlausibleC:
		s.log.Warnw("temperature_out_of_range", "value", v)
		smp.Valid = false
	}
	return smp
}

// publish replaces an unconsumed sample with the newer one.
func (s *TemperatureSampler) publish(smp control.Sample) {
	for {
		select {
		case s.out <- smp:
			return
		default:
		}
		select {
		case <-s.out:
		default:
		}
	}
}
