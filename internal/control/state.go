// Package control holds the pump arbitration logic. Every function is pure:
// the caller passes the clock and the sensor readings in and gets a new State
// back, so the same code runs against real GPIO, the simulator and tests.
package control

import "time"

// ErrorKind values double as the numeric error codes reported to the UI.
type ErrorKind int

const (
	ErrorNone        ErrorKind = 0
	ErrorEmergency   ErrorKind = 1
	ErrorPumpTimeout ErrorKind = 3
	ErrorTempSensor  ErrorKind = 4
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorEmergency:
		return "emergency_high"
	case ErrorPumpTimeout:
		return "pump_timeout"
	case ErrorTempSensor:
		return "temperature_sensor"
	default:
		return "unknown"
	}
}

// Mode is the effective operating mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModePumping
	ModeMaintenance
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePumping:
		return "pumping"
	case ModeMaintenance:
		return "maintenance"
	case ModeError:
		return "error"
	default:
		return "unknown"
	}
}

// Levels is one reading of the three float switches, already mapped to
// "condition present" semantics.
type Levels struct {
	SumpLow       bool
	EmergencyHigh bool
	RodiLow       bool
}

// State is the complete control state. Error conditions are tracked as
// independent flags so that clearing one (the emergency switch dropping)
// leaves the others intact.
type State struct {
	Levels

	Pumping       bool
	PumpStartedAt time.Time
	LastPumpStop  time.Time
	LastPumpRun   time.Time

	Emergency       bool
	PumpTimeout     bool
	TempSensorFault bool

	Maintenance      bool
	MaintenanceSince time.Time

	Temperature      float64
	TemperatureValid bool

	MinTemp float64
	MaxTemp float64
}

// New returns the boot state. LastPumpStop starts at boot time so that a
// restart in the middle of a fill waits one full cooldown.
func New(now time.Time, minTemp, maxTemp float64) State {
	return State{
		LastPumpStop: now,
		MinTemp:      minTemp,
		MaxTemp:      maxTemp,
	}
}

// HasError reports whether any error condition is present.
func (s State) HasError() bool {
	return s.Emergency || s.PumpTimeout || s.TempSensorFault
}

// ErrorKind returns the highest priority error present.
func (s State) ErrorKind() ErrorKind {
	switch {
	case s.Emergency:
		return ErrorEmergency
	case s.PumpTimeout:
		return ErrorPumpTimeout
	case s.TempSensorFault:
		return ErrorTempSensor
	default:
		return ErrorNone
	}
}

// Mode resolves the effective mode: Error > Maintenance > Pumping > Idle.
func (s State) Mode() Mode {
	switch {
	case s.HasError():
		return ModeError
	case s.Maintenance:
		return ModeMaintenance
	case s.Pumping:
		return ModePumping
	default:
		return ModeIdle
	}
}

// MaintenanceRemaining is the time left before maintenance ends on its own.
func (s State) MaintenanceRemaining(now time.Time, p Params) time.Duration {
	if !s.Maintenance {
		return 0
	}
	left := p.MaintenanceTimeout - now.Sub(s.MaintenanceSince)
	if left < 0 {
		return 0
	}
	return left
}

// TemperatureHigh reports a valid reading above the configured band.
func (s State) TemperatureHigh() bool {
	return s.TemperatureValid && s.Temperature > s.MaxTemp
}
