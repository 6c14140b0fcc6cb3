package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects values the daemon cannot run with.
func (c *Config) Validate() error {
	positive := map[string]int64{
		"control.cycle":               int64(c.Control.Cycle),
		"control.pump_timeout":        int64(c.Control.PumpTimeout),
		"control.pump_cooldown":       int64(c.Control.PumpCooldown),
		"control.maintenance_timeout": int64(c.Control.MaintenanceTimeout),
		"control.temp_sample_period":  int64(c.Control.TempSamplePeriod),
		"control.history_retention":   int64(c.Control.HistoryRetention),
		"control.event_retention":     int64(c.Control.EventRetention),
		"update.check_timeout":        int64(c.Update.CheckTimeout),
		"update.request_timeout":      int64(c.Update.RequestTimeout),
		"update.download_timeout":     int64(c.Update.DownloadTimeout),
		"update.signature_timeout":    int64(c.Update.SignatureTimeout),
		"update.max_image_size":       c.Update.MaxImageSize,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, key)
		}
	}

	if c.Control.Cycle >= c.Control.PumpTimeout {
		return fmt.Errorf("%w: control.cycle must be shorter than control.pump_timeout", ErrInvalidConfig)
	}
	if c.Update.ChunkSize < 1<<10 || c.Update.ChunkSize > 32<<10 {
		return fmt.Errorf("%w: update.chunk_size must be between 1KiB and 32KiB", ErrInvalidConfig)
	}
	if c.Update.SpaceMargin < 0 {
		return fmt.Errorf("%w: update.space_margin must not be negative", ErrInvalidConfig)
	}

	switch c.Hardware.Driver {
	case "gpio", "sim":
	default:
		return fmt.Errorf("%w: hardware.driver %q (want gpio or sim)", ErrInvalidConfig, c.Hardware.Driver)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("%w: mqtt.broker is required when mqtt is enabled", ErrInvalidConfig)
	}
	return nil
}
