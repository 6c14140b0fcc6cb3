package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetPumping(true)
	c.RecordPumpRun(42 * time.Second)
	c.RecordFault("pump_timeout")
	c.RecordFault("pump_timeout")
	c.SetTemperature(25.5)
	c.RecordUpdate("firmware", "failed", 1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.pumping))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pumpRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.faults.WithLabelValues("pump_timeout")))
	assert.Equal(t, 25.5, testutil.ToFloat64(c.temperature))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.updates.WithLabelValues("firmware", "failed")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.updateBytes))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SetPumping(true)
		c.RecordPumpRun(time.Second)
		c.RecordFault("emergency_high")
		c.ObserveCycle(time.Millisecond)
		c.RecordManifestCheck(false)
		c.SetWebsocketClients(3)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.SetLevels(true, false, true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ato_level_switch_active{switch="rodi_low"} 1`))
}
