package models

const (
	DefaultDeviceName = "reef-ato"
	DefaultMinTemp    = 22.0
	DefaultMaxTemp    = 30.0
)

// DeviceConfig is the persisted operator configuration. Valid marks a record
// that was written by this daemon; anything else is replaced by defaults.
type DeviceConfig struct {
	DeviceName string  `json:"device_name"`
	MinTemp    float64 `json:"min_temp"`
	MaxTemp    float64 `json:"max_temp"`
	Valid      bool    `json:"valid"`
}

func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		DeviceName: DefaultDeviceName,
		MinTemp:    DefaultMinTemp,
		MaxTemp:    DefaultMaxTemp,
		Valid:      true,
	}
}
