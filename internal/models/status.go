package models

// Status is the flat snapshot pushed to subscribers and returned by
// GET /api/v1/status. Field names are shared with the web UI.
type Status struct {
	Pumping       bool    `json:"pumping"`
	Error         bool    `json:"error"`
	ErrorCode     int     `json:"error_code"`
	SumpLow       bool    `json:"sump_low"`
	EmergencyHigh bool    `json:"emergency_high"`
	RodiLow       bool    `json:"rodi_low"`
	Temperature   float64 `json:"temperature"`
	Uptime        int64   `json:"uptime"`

	MaintenanceMode      bool  `json:"maintenance_mode"`
	MaintenanceRemaining int64 `json:"maintenance_remaining"`
	LastPumpRun          int64 `json:"last_pump_run"`

	DeviceName string  `json:"device_name"`
	MinTemp    float64 `json:"min_temp"`
	MaxTemp    float64 `json:"max_temp"`

	FirmwareVersion         string `json:"fw_version"`
	ContentVersion          string `json:"content_version"`
	FirmwareUpdateAvailable bool   `json:"firmware_update_available"`
	FirmwareUpdateVersion   string `json:"firmware_update_version"`
	ContentUpdateAvailable  bool   `json:"content_update_available"`
	ContentUpdateVersion    string `json:"content_update_version"`

	UpdateInProgress bool   `json:"update_in_progress"`
	UpdatePhase      string `json:"update_phase,omitempty"`
	LastUpdateResult string `json:"last_update_result,omitempty"`
}

// Command is the payload accepted on every command channel (HTTP, websocket,
// MQTT). Unset fields are ignored.
type Command struct {
	Maintenance *bool `json:"maintenance,omitempty"`
	ResetError  bool  `json:"reset_error,omitempty"`
}
