package control

import (
	"math"
	"time"
)

// Sample is one temperature probe reading. Valid is false when the probe
// reported an error or a value outside its physical range.
type Sample struct {
	Value float64
	Valid bool
	At    time.Time
}

// Inputs is everything one control cycle observes.
type Inputs struct {
	Now         time.Time
	Levels      Levels
	Temperature *Sample
}

// Step runs one control cycle.
func Step(s State, in Inputs, p Params) State {
	now := in.Now
	s.Levels = in.Levels
	s.Emergency = in.Levels.EmergencyHigh

	if in.Temperature != nil {
		s = applySample(s, *in.Temperature)
	}

	if s.Maintenance && now.Sub(s.MaintenanceSince) >= p.MaintenanceTimeout {
		s.Maintenance = false
		s.MaintenanceSince = time.Time{}
	}

	if s.Pumping {
		switch {
		case s.HasError() || s.Maintenance:
			s = stopPump(s, now)
		case now.Sub(s.PumpStartedAt) > p.PumpTimeout:
			s = stopPump(s, now)
			s.PumpTimeout = true
		case !s.SumpLow:
			s = stopPump(s, now)
		}
		return s
	}

	if canStart(s, now, p) {
		s.Pumping = true
		s.PumpStartedAt = now
	}
	return s
}

// canStart reports whether a pump run may begin at now. RODI low only
// blocks starts; it never stops a running pump.
func canStart(s State, now time.Time, p Params) bool {
	return s.SumpLow &&
		!s.RodiLow &&
		!s.HasError() &&
		!s.Maintenance &&
		cooldownElapsed(s, now, p)
}

func cooldownElapsed(s State, now time.Time, p Params) bool {
	return s.LastPumpStop.IsZero() || now.Sub(s.LastPumpStop) > p.PumpCooldown
}

func stopPump(s State, now time.Time) State {
	s.Pumping = false
	s.PumpStartedAt = time.Time{}
	s.LastPumpStop = now
	s.LastPumpRun = now
	return s
}

func applySample(s State, smp Sample) State {
	if !smp.Valid {
		s.TempSensorFault = true
		return s
	}
	s.TempSensorFault = false
	if !s.TemperatureValid || math.Abs(smp.Value-s.Temperature) > temperatureDeadband {
		s.Temperature = smp.Value
		s.TemperatureValid = true
	}
	return s
}

// SetMaintenance enters or leaves maintenance. Entering stops a running pump.
// The bool result is false when the state already matched.
func SetMaintenance(s State, enable bool, now time.Time) (State, bool) {
	if s.Maintenance == enable {
		return s, false
	}
	if enable {
		s.Maintenance = true
		s.MaintenanceSince = now
		if s.Pumping {
			s = stopPump(s, now)
		}
		return s, true
	}
	s.Maintenance = false
	s.MaintenanceSince = time.Time{}
	return s, true
}

// ResetError clears a latched pump timeout and the cooldown clock. Emergency
// and sensor faults follow their inputs and are not affected.
func ResetError(s State) (State, bool) {
	if !s.PumpTimeout {
		return s, false
	}
	s.PumpTimeout = false
	s.LastPumpStop = time.Time{}
	return s, true
}

// SetBand updates the temperature band the alarm compares against.
func SetBand(s State, minTemp, maxTemp float64) State {
	s.MinTemp = minTemp
	s.MaxTemp = maxTemp
	return s
}
