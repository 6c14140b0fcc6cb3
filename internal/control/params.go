package control

import "time"

const (
	DefaultPumpTimeout        = 120 * time.Second
	DefaultPumpCooldown       = 60 * time.Second
	DefaultMaintenanceTimeout = time.Hour

	// temperatureDeadband filters probe noise: smaller moves are not
	// reported as changes.
	temperatureDeadband = 0.1
)

// Params are the timing limits of the state machine.
type Params struct {
	PumpTimeout        time.Duration
	PumpCooldown       time.Duration
	MaintenanceTimeout time.Duration
}

func DefaultParams() Params {
	return Params{
		PumpTimeout:        DefaultPumpTimeout,
		PumpCooldown:       DefaultPumpCooldown,
		MaintenanceTimeout: DefaultMaintenanceTimeout,
	}
}
