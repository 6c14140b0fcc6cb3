package hardware

import (
	"context"
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSimulatorEvaporationLowersSump(t *testing.T) {
	s := NewSimulator()
	s.SetLevels(50, 100)

	s.Advance(100)

	got := s.Snapshot().SumpPct
	want := 50 - SimEvaporationPerSec*100
	if !approx(got, want) {
		t.Fatalf("sump %.3f, want %.3f", got, want)
	}
}

func TestSimulatorPumpFillsFromReservoir(t *testing.T) {
	s := NewSimulator()
	s.SetLevels(30, 100)
	b := s.Board()
	if err := b.Relay.Set(true); err != nil {
		t.Fatal(err)
	}

	s.Advance(10)

	snap := s.Snapshot()
	wantSump := 30 - SimEvaporationPerSec*10 + SimPumpFillPerSec*10
	if !approx(snap.SumpPct, wantSump) {
		t.Fatalf("sump %.3f, want %.3f", snap.SumpPct, wantSump)
	}
	wantRes := 100 - SimPumpFillPerSec*10*SimReservoirPerSumpPct
	if !approx(snap.ReservoirPct, wantRes) {
		t.Fatalf("reservoir %.3f, want %.3f", snap.ReservoirPct, wantRes)
	}
	if !snap.Relay {
		t.Fatalf("relay should read back as on")
	}
}

func TestSimulatorEmptyReservoirStopsFilling(t *testing.T) {
	s := NewSimulator()
	s.SetLevels(30, 1)
	_ = s.Board().Relay.Set(true)

	s.Advance(60)

	snap := s.Snapshot()
	if snap.ReservoirPct != 0 {
		t.Fatalf("reservoir %.3f, want 0", snap.ReservoirPct)
	}
	if snap.SumpPct > 33 {
		t.Fatalf("sump %.3f filled beyond what the reservoir held", snap.SumpPct)
	}
}

func TestSimulatorSensors(t *testing.T) {
	s := NewSimulator()
	b := s.Board()

	s.SetLevels(SimSumpLowBelow-1, SimReservoirLowBelow-1)
	if v, _ := b.Sump.Read(); !v {
		t.Fatalf("expected sump low")
	}
	if v, _ := b.Rodi.Read(); !v {
		t.Fatalf("expected rodi low")
	}
	if v, _ := b.Emergency.Read(); v {
		t.Fatalf("unexpected emergency")
	}

	s.SetLevels(SimSumpHighAbove+1, 50)
	if v, _ := b.Emergency.Read(); !v {
		t.Fatalf("expected emergency high")
	}
}

func TestSimulatorTemperatureDriftAndFault(t *testing.T) {
	s := NewSimulator()
	s.SetTemperature(SimAmbientC + 1)
	s.Advance(100)

	got, err := s.Board().Probe.ReadCelsius()
	if err != nil {
		t.Fatal(err)
	}
	want := SimAmbientC + 1 - SimAmbientDriftPerSec*100
	if !approx(got, want) {
		t.Fatalf("temp %.4f, want %.4f", got, want)
	}

	s.SetTemperature(SimAmbientC + 0.001)
	s.Advance(100)
	if got := s.Snapshot().TempC; got != SimAmbientC {
		t.Fatalf("expected clamp to ambient, got %.4f", got)
	}

	s.SetProbeFault(true)
	if _, err := s.Board().Probe.ReadCelsius(); err == nil {
		t.Fatalf("expected probe error")
	}
}

func TestSimulatorRunStopsOnCancel(t *testing.T) {
	s := NewSimulator()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if s.Snapshot().SumpPct >= 50 {
		t.Fatalf("expected some evaporation while running")
	}
}
