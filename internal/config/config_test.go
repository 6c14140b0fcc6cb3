package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "http:\n  port: \"9000\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, 100*time.Millisecond, cfg.Control.Cycle)
	assert.Equal(t, 120*time.Second, cfg.Control.PumpTimeout)
	assert.Equal(t, 60*time.Second, cfg.Control.PumpCooldown)
	assert.Equal(t, time.Hour, cfg.Control.MaintenanceTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Alarm.TempAlertRepeat)
	assert.Equal(t, 10, cfg.Alarm.BurstBeeps)
	assert.Equal(t, "@every 48h", cfg.Update.Schedule)
	assert.Equal(t, int64(4096), cfg.Update.SpaceMargin)
	assert.Equal(t, 26, cfg.Hardware.Sump.Line)
	assert.True(t, cfg.Hardware.Sump.ActiveLow)
	assert.False(t, cfg.Hardware.Emergency.ActiveLow)
}

func TestLoadReadsFileValues(t *testing.T) {
	path := writeConfig(t, `
control:
  pump_timeout: 90s
hardware:
  driver: gpio
  relay:
    line: 6
    active_low: true
update:
  manifest_url: https://updates.example.com/manifest.json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Control.PumpTimeout)
	assert.Equal(t, "gpio", cfg.Hardware.Driver)
	assert.Equal(t, Pin{Line: 6, ActiveLow: true}, cfg.Hardware.Relay)
	assert.Equal(t, "https://updates.example.com/manifest.json", cfg.Update.ManifestURL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ATO_CONTROL_PUMP_COOLDOWN", "2m")
	t.Setenv("ATO_MQTT_ENABLED", "true")

	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Control.PumpCooldown)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "hardware:\n  driver: spi\n"},
		{"zero timeout", "control:\n  pump_timeout: 0s\n"},
		{"chunk too large", "update:\n  chunk_size: 1048576\n"},
		{"cycle longer than timeout", "control:\n  cycle: 5m\n"},
		{"mqtt without broker", "mqtt:\n  enabled: true\n  broker: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}
