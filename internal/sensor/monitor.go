// Package sensor samples the float switches and the temperature probe for
// the control cycle.
package sensor

import (
	"ato_controller/internal/control"
	"ato_controller/internal/hardware"
	"ato_controller/internal/logger"
)

type channel struct {
	name    string
	in      hardware.Input
	last    bool
	failing bool
}

// Monitor polls the three level inputs. A failed read keeps that input's last
// good value; the failure is logged once when it starts and once when it
// clears.
type Monitor struct {
	sump, emergency, rodi *channel
	primed                bool
	log                   *logger.Logger
}

func NewMonitor(sump, emergency, rodi hardware.Input, log *logger.Logger) *Monitor {
	if log == nil {
		log = logger.Nop()
	}
	return &Monitor{
		sump:      &channel{name: "sump", in: sump},
		emergency: &channel{name: "emergency", in: emergency},
		rodi:      &channel{name: "rodi", in: rodi},
		log:       log,
	}
}

// Poll reads all inputs and reports whether any level differs from the
// previous poll. The first poll always reports a change.
func (m *Monitor) Poll() (control.Levels, bool) {
	changed := !m.primed
	m.primed = true
	for _, ch := range []*channel{m.sump, m.emergency, m.rodi} {
		if m.read(ch) {
			changed = true
		}
	}
	return m.Levels(), changed
}

// Levels returns the last known levels without reading the inputs.
func (m *Monitor) Levels() control.Levels {
	return control.Levels{
		SumpLow:       m.sump.last,
		EmergencyHigh: m.emergency.last,
		RodiLow:       m.rodi.last,
	}
}

func (m *Monitor) read(ch *channel) bool {
	v, err := ch.in.Read()
	if err != nil {
		if !ch.failing {
			ch.failing = true
			m.log.Warnw("level_read_failed", "input", ch.name, "err", err)
		}
		return false
	}
	if ch.failing {
		ch.failing = false
		m.log.Infow("level_read_recovered", "input", ch.name)
	}
	if v == ch.last {
		return false
	}
	ch.last = v
	return true
}
