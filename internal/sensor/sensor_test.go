package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ato_controller/internal/control"
	"ato_controller/internal/hardware"
)

func TestMonitorEdgeDetection(t *testing.T) {
	fake := &hardware.Fake{}
	b := fake.Board()
	m := NewMonitor(b.Sump, b.Emergency, b.Rodi, nil)

	_, changed := m.Poll()
	assert.True(t, changed, "first poll always reports")

	_, changed = m.Poll()
	assert.False(t, changed)

	fake.Update(func(f *hardware.Fake) { f.SumpLow = true })
	levels, changed := m.Poll()
	assert.True(t, changed)
	assert.Equal(t, control.Levels{SumpLow: true}, levels)
}

func TestMonitorKeepsLastGoodOnError(t *testing.T) {
	fake := &hardware.Fake{SumpLow: true, RodiLow: true}
	b := fake.Board()
	m := NewMonitor(b.Sump, b.Emergency, b.Rodi, nil)
	m.Poll()

	fake.Update(func(f *hardware.Fake) {
		f.SumpLow = false
		f.ReadErr = errors.New("line busy")
	})
	levels, changed := m.Poll()
	assert.False(t, changed)
	assert.Equal(t, control.Levels{SumpLow: true, RodiLow: true}, levels)

	fake.Update(func(f *hardware.Fake) { f.ReadErr = nil })
	levels, changed = m.Poll()
	assert.True(t, changed)
	assert.False(t, levels.SumpLow)
}

func TestSamplerValidity(t *testing.T) {
	fake := &hardware.Fake{Celsius: 25.4}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewTemperatureSampler(fake.Board().Probe, time.Second, func() time.Time { return now }, nil)

	smp := s.Sample()
	assert.True(t, smp.Valid)
	assert.Equal(t, 25.4, smp.Value)
	assert.Equal(t, now, smp.At)

	fake.Update(func(f *hardware.Fake) { f.ProbeErr = hardware.ErrProbeDisconnected })
	assert.False(t, s.Sample().Valid)

	fake.Update(func(f *hardware.Fake) { f.ProbeErr = nil; f.Celsius = 150 })
	assert.False(t, s.Sample().Valid, "outside the probe range")
}

func TestSamplerKeepsNewestSample(t *testing.T) {
	fake := &hardware.Fake{}
	s := NewTemperatureSampler(fake.Board().Probe, time.Second, nil, nil)

	s.publish(control.Sample{Value: 24, Valid: true})
	s.publish(control.Sample{Value: 25, Valid: true})

	select {
	case smp := <-s.Samples():
		assert.Equal(t, 25.0, smp.Value)
	default:
		t.Fatal("expected a sample")
	}
	select {
	case <-s.Samples():
		t.Fatal("only one sample should be buffered")
	default:
	}
}

func TestSamplerRunPublishesImmediately(t *testing.T) {
	fake := &hardware.Fake{Celsius: 26}
	s := NewTemperatureSampler(fake.Board().Probe, time.Hour, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	select {
	case smp := <-s.Samples():
		require.True(t, smp.Valid)
		assert.Equal(t, 26.0, smp.Value)
	case <-time.After(time.Second):
		t.Fatal("no sample published at start")
	}
}
