package control

// Change is a bit set of externally visible differences between two states.
type Change uint

const (
	ChangePump Change = 1 << iota
	ChangeError
	ChangeLevels
	ChangeMaintenance
	ChangeTemperature
	ChangeBand
)

func (c Change) Has(flag Change) bool { return c&flag != 0 }

// Diff reports what changed between prev and next.
func Diff(prev, next State) Change {
	var c Change
	if prev.Pumping != next.Pumping {
		c |= ChangePump
	}
	if prev.ErrorKind() != next.ErrorKind() || prev.HasError() != next.HasError() {
		c |= ChangeError
	}
	if prev.Levels != next.Levels {
		c |= ChangeLevels
	}
	if prev.Maintenance != next.Maintenance {
		c |= ChangeMaintenance
	}
	if prev.Temperature != next.Temperature || prev.TemperatureValid != next.TemperatureValid {
		c |= ChangeTemperature
	}
	if prev.MinTemp != next.MinTemp || prev.MaxTemp != next.MaxTemp {
		c |= ChangeBand
	}
	return c
}
