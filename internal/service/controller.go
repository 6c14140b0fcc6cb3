package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ato_controller/internal/alarm"
	"ato_controller/internal/broadcast"
	"ato_controller/internal/control"
	"ato_controller/internal/hardware"
	"ato_controller/internal/logger"
	"ato_controller/internal/metrics"
	"ato_controller/internal/models"
	"ato_controller/internal/sensor"
	"ato_controller/internal/state"
)

// maintenanceBroadcast is how often the countdown is pushed while in
// maintenance, even when nothing else changed.
const maintenanceBroadcast = time.Second

// HistoryRecorder receives every valid temperature sample.
type HistoryRecorder interface {
	AddReading(r models.TemperatureReading)
}

type ControllerOptions struct {
	Board       *hardware.Board
	Monitor     *sensor.Monitor
	Samples     <-chan control.Sample
	Shared      *state.Shared
	Params      control.Params
	Alarm       *alarm.Driver
	TempAlert   *alarm.TempAlert
	Blinker     *alarm.Blinker
	Status      StatusBuilder
	History     HistoryRecorder
	Journal     *Journal
	Broadcaster broadcast.Broadcaster
	Metrics     *metrics.Collector
	Watchdog    *Watchdog
	Now         func() time.Time
	Log         *logger.Logger
}

// ControlService runs the control cycle. The cycle and operator commands
// share one mutex, so a command is never interleaved with a half applied
// cycle.
type ControlService struct {
	board     *hardware.Board
	monitor   *sensor.Monitor
	samples   <-chan control.Sample
	shared    *state.Shared
	params    control.Params
	alarm     *alarm.Driver
	tempAlert *alarm.TempAlert
	blinker   *alarm.Blinker
	status    StatusBuilder
	history   HistoryRecorder
	journal   *Journal
	out       broadcast.Broadcaster
	metrics   *metrics.Collector
	watchdog  *Watchdog
	now       func() time.Time
	log       *logger.Logger

	mu            sync.Mutex
	st            control.State
	relayOn       bool
	relayKnown    bool
	led           alarm.Color
	ledKnown      bool
	lastBroadcast time.Time
	lastUpdate    updateKey
}

// updateKey is the part of the update status that is worth a broadcast.
type updateKey struct {
	inProgress bool
	phase      string
	result     string
	avail      models.Availability
}

func NewControlService(initial control.State, opts ControllerOptions) *ControlService {
	c := &ControlService{
		board:     opts.Board,
		monitor:   opts.Monitor,
		samples:   opts.Samples,
		shared:    opts.Shared,
		params:    opts.Params,
		alarm:     opts.Alarm,
		tempAlert: opts.TempAlert,
		blinker:   opts.Blinker,
		status:    opts.Status,
		history:   opts.History,
		journal:   opts.Journal,
		out:       opts.Broadcaster,
		metrics:   opts.Metrics,
		watchdog:  opts.Watchdog,
		now:       opts.Now,
		log:       opts.Log,
		st:        initial,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.alarm == nil {
		c.alarm = alarm.NewDriver(c.board.Buzzer, 0, 0)
	}
	if c.tempAlert == nil {
		c.tempAlert = alarm.NewTempAlert(0)
	}
	if c.blinker == nil {
		c.blinker = alarm.NewBlinker(0)
	}
	if c.out == nil {
		c.out = broadcast.Multi(nil)
	}
	return c
}

// Run ticks at the given interval until ctx is canceled. On exit the relay,
// the buzzer and the LED are switched off.
func (c *ControlService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	defer c.shutdown()

	c.Cycle(c.now())
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Cycle(c.now())
		}
	}
}

// Cycle runs one control cycle at now.
func (c *ControlService) Cycle(now time.Time) {
	started := time.Now()

	levels, _ := c.monitor.Poll()
	var smp *control.Sample
	select {
	case s := <-c.samples:
		smp = &s
	default:
	}

	c.mu.Lock()
	prev := c.st
	next := control.Step(prev, control.Inputs{Now: now, Levels: levels, Temperature: smp}, c.params)
	c.st = next
	c.apply(prev, next, now, smp)
	c.mu.Unlock()

	c.metrics.ObserveCycle(time.Since(started))
	c.watchdog.Ping(now)
}

// State returns the current control state.
func (c *ControlService) State() control.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

func (c *ControlService) SetMaintenance(ctx context.Context, enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	next, changed := control.SetMaintenance(c.st, enable, now)
	if !changed {
		return nil
	}
	prev := c.st
	c.st = next
	c.apply(prev, next, now, nil)
	return nil
}

func (c *ControlService) ResetError(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := control.ResetError(c.st)
	if !changed {
		return nil
	}
	prev := c.st
	c.st = next
	c.apply(prev, next, c.now(), nil)
	return nil
}

// Execute applies a command received on any command channel.
func (c *ControlService) Execute(ctx context.Context, cmd models.Command) error {
	if cmd.Maintenance != nil {
		if err := c.SetMaintenance(ctx, *cmd.Maintenance); err != nil {
			return err
		}
	}
	if cmd.ResetError {
		return c.ResetError(ctx)
	}
	return nil
}

// SetBand moves the temperature band the alarm compares against.
func (c *ControlService) SetBand(minTemp, maxTemp float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.st
	next := control.SetBand(prev, minTemp, maxTemp)
	c.st = next
	c.apply(prev, next, c.now(), nil)
}

// apply drives the outputs for a transition from prev to next. Called with
// c.mu held.
func (c *ControlService) apply(prev, next control.State, now time.Time, smp *control.Sample) {
	changes := control.Diff(prev, next)

	c.driveRelay(next.Pumping)

	if smp != nil && smp.Valid {
		if c.history != nil {
			c.history.AddReading(models.TemperatureReading{Value: smp.Value, Timestamp: smp.At})
		}
		c.journal.Reading(models.TemperatureReading{Value: smp.Value, Timestamp: smp.At})
		if c.tempAlert.Observe(smp.Value, next.MinTemp, next.MaxTemp, now) {
			c.log.Warnw("temperature_out_of_range", "temperature", smp.Value, "min_temp", next.MinTemp, "max_temp", next.MaxTemp)
			c.journal.Event(models.Event{
				OccurredAt:  now,
				Type:        models.EventTempAlert,
				Description: fmt.Sprintf("Temperature %.1f outside %.1f-%.1f", smp.Value, next.MinTemp, next.MaxTemp),
				Metadata:    map[string]any{"temperature": smp.Value, "min_temp": next.MinTemp, "max_temp": next.MaxTemp},
			})
			if err := c.alarm.Burst(now); err != nil {
				c.log.Errorw("buzzer_write_failed", "err", err)
			}
		}
	}
	if err := c.alarm.Tick(now, alarm.PatternFor(next)); err != nil {
		c.log.Errorw("buzzer_write_failed", "err", err)
	}

	c.driveLED(next, now)
	c.shared.SetControl(next)
	c.record(prev, next, changes, now)

	upd := c.updateKey()
	due := next.Maintenance && now.Sub(c.lastBroadcast) >= maintenanceBroadcast
	if changes != 0 || upd != c.lastUpdate || due || c.lastBroadcast.IsZero() {
		c.lastUpdate = upd
		c.lastBroadcast = now
		if c.status != nil {
			c.out.Broadcast(c.status.Build(next, now))
		}
	}
}

func (c *ControlService) driveRelay(on bool) {
	if c.relayKnown && c.relayOn == on {
		return
	}
	if err := c.board.Relay.Set(on); err != nil {
		c.log.Errorw("relay_write_failed", "on", on, "err", err)
		c.relayKnown = false
		return
	}
	c.relayOn, c.relayKnown = on, true
}

func (c *ControlService) driveLED(st control.State, now time.Time) {
	color := alarm.LEDColor(st)
	// The shared snapshot, not the update service: its lock is held while a
	// task is being started and the cycle must not wait for it.
	if c.shared.Update().InProgress {
		color = c.blinker.Color(now)
	}
	if c.ledKnown && c.led == color {
		return
	}
	if err := c.board.LED.SetColor(color.R, color.G, color.B); err != nil {
		c.log.Errorw("led_write_failed", "err", err)
		c.ledKnown = false
		return
	}
	c.led, c.ledKnown = color, true
}

func (c *ControlService) updateKey() updateKey {
	u := c.shared.Update()
	return updateKey{inProgress: u.InProgress, phase: u.Phase, result: u.LastResult, avail: u.Availability}
}

// record logs, journals and counts a transition.
func (c *ControlService) record(prev, next control.State, changes control.Change, now time.Time) {
	if changes.Has(control.ChangePump) {
		if next.Pumping {
			c.log.Infow("pump_started")
			c.journal.Event(models.Event{OccurredAt: now, Type: models.EventPumpStart, Description: "Pump started"})
		} else {
			run := now.Sub(prev.PumpStartedAt)
			c.log.Infow("pump_stopped", "run", run, "reason", stopReason(next))
			c.journal.Event(models.Event{
				OccurredAt:  now,
				Type:        models.EventPumpStop,
				Description: "Pump stopped: " + stopReason(next),
				Metadata:    map[string]any{"run_seconds": run.Seconds()},
			})
			c.metrics.RecordPumpRun(run)
		}
	}

	if changes.Has(control.ChangeError) {
		kind := next.ErrorKind()
		if kind != control.ErrorNone {
			c.log.Errorw("error_raised", "code", int(kind), "kind", kind.String())
			c.journal.Event(models.Event{
				OccurredAt:  now,
				Type:        models.EventError,
				Description: "Error: " + kind.String(),
				Metadata:    map[string]any{"error_code": int(kind)},
			})
			c.metrics.RecordFault(kind.String())
		} else {
			c.log.Infow("error_cleared", "previous", prev.ErrorKind().String())
			c.journal.Event(models.Event{
				OccurredAt:  now,
				Type:        models.EventErrorCleared,
				Description: "Cleared: " + prev.ErrorKind().String(),
			})
		}
	}

	if changes.Has(control.ChangeMaintenance) {
		msg := "Maintenance mode off"
		if next.Maintenance {
			msg = "Maintenance mode on"
		}
		c.log.Infow("maintenance_changed", "enabled", next.Maintenance)
		c.journal.Event(models.Event{OccurredAt: now, Type: models.EventMaintenance, Description: msg})
	}

	if changes.Has(control.ChangeLevels) {
		c.log.Infow("levels_changed", "sump_low", next.SumpLow, "emergency_high", next.EmergencyHigh, "rodi_low", next.RodiLow)
	}

	c.metrics.SetPumping(next.Pumping)
	c.metrics.SetMaintenance(next.Maintenance)
	c.metrics.SetLevels(next.SumpLow, next.EmergencyHigh, next.RodiLow)
	if next.TemperatureValid {
		c.metrics.SetTemperature(next.Temperature)
	}
}

func stopReason(s control.State) string {
	switch {
	case s.HasError():
		return s.ErrorKind().String()
	case s.Maintenance:
		return "maintenance"
	default:
		return "sump_restored"
	}
}

// shutdown de-energises every output.
func (c *ControlService) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.board.Relay.Set(false); err != nil {
		c.log.Errorw("relay_write_failed", "on", false, "err", err)
	}
	c.relayOn, c.relayKnown = false, true
	if err := c.alarm.Off(); err != nil {
		c.log.Errorw("buzzer_write_failed", "err", err)
	}
	if err := c.board.LED.SetColor(0, 0, 0); err != nil {
		c.log.Errorw("led_write_failed", "err", err)
	}
	c.log.Infow("outputs_off")
}
