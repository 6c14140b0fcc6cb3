// Package metrics exposes controller and update pipeline metrics to
// Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ato"

// Collector groups the metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	pumping       prometheus.Gauge
	pumpRuns      prometheus.Counter
	pumpRunTime   prometheus.Histogram
	faults        *prometheus.CounterVec
	temperature   prometheus.Gauge
	maintenance   prometheus.Gauge
	levels        *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	manifest      *prometheus.CounterVec
	updates       *prometheus.CounterVec
	updateBytes   prometheus.Counter
	wsClients     prometheus.Gauge
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pumping: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pump_on",
			Help: "1 while the top-off pump relay is energised",
		}),
		pumpRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "pump_runs_total",
			Help: "Completed or aborted pump runs",
		}),
		pumpRunTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "pump_run_seconds",
			Help:    "Duration of pump runs",
			Buckets: []float64{5, 10, 20, 30, 60, 90, 120, 180},
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "faults_total",
			Help: "Error conditions raised, by kind",
		}, []string{"kind"}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "water_temperature_celsius",
			Help: "Last valid water temperature",
		}),
		maintenance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "maintenance_mode",
			Help: "1 while maintenance mode is active",
		}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "level_switch_active",
			Help: "Float switch state, 1 when the condition is present",
		}, []string{"switch"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "control_cycle_seconds",
			Help:    "Time spent in one control cycle",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		manifest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "manifest_checks_total",
			Help: "Update manifest checks, by result",
		}, []string{"result"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "updates_total",
			Help: "Update attempts, by image kind and result",
		}, []string{"kind", "result"}),
		updateBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "update_bytes_total",
			Help: "Image bytes downloaded",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "websocket_clients",
			Help: "Open websocket connections",
		}),
	}
	reg.MustRegister(
		c.pumping, c.pumpRuns, c.pumpRunTime, c.faults, c.temperature, c.maintenance,
		c.levels, c.cycleDuration, c.manifest, c.updates, c.updateBytes, c.wsClients,
	)
	return c
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func (c *Collector) SetPumping(on bool) {
	if c == nil {
		return
	}
	c.pumping.Set(boolGauge(on))
}

// RecordPumpRun counts a finished run.
func (c *Collector) RecordPumpRun(d time.Duration) {
	if c == nil {
		return
	}
	c.pumpRuns.Inc()
	c.pumpRunTime.Observe(d.Seconds())
}

func (c *Collector) RecordFault(kind string) {
	if c == nil {
		return
	}
	c.faults.WithLabelValues(kind).Inc()
}

func (c *Collector) SetTemperature(v float64) {
	if c == nil {
		return
	}
	c.temperature.Set(v)
}

func (c *Collector) SetMaintenance(on bool) {
	if c == nil {
		return
	}
	c.maintenance.Set(boolGauge(on))
}

func (c *Collector) SetLevels(sumpLow, emergencyHigh, rodiLow bool) {
	if c == nil {
		return
	}
	c.levels.WithLabelValues("sump_low").Set(boolGauge(sumpLow))
	c.levels.WithLabelValues("emergency_high").Set(boolGauge(emergencyHigh))
	c.levels.WithLabelValues("rodi_low").Set(boolGauge(rodiLow))
}

func (c *Collector) ObserveCycle(d time.Duration) {
	if c == nil {
		return
	}
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collector) RecordManifestCheck(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.manifest.WithLabelValues(result).Inc()
}

func (c *Collector) RecordUpdate(kind, result string, bytes int64) {
	if c == nil {
		return
	}
	c.updates.WithLabelValues(kind, result).Inc()
	if bytes > 0 {
		c.updateBytes.Add(float64(bytes))
	}
}

func (c *Collector) SetWebsocketClients(n int) {
	if c == nil {
		return
	}
	c.wsClients.Set(float64(n))
}
