package models

import "time"

// Manifest is the last successfully fetched update manifest. It is replaced
// as a whole on every successful check.
type Manifest struct {
	FirmwareVersion string `json:"firmware_version"`
	FirmwareURL     string `json:"firmware_url"`
	ContentVersion  string `json:"content_version"`
	ContentURL      string `json:"content_url"`
}

// Availability is derived from a Manifest and the installed versions.
type Availability struct {
	Firmware        bool   `json:"firmware_update_available"`
	FirmwareVersion string `json:"firmware_update_version,omitempty"`
	FirmwareURL     string `json:"-"`
	Content         bool   `json:"content_update_available"`
	ContentVersion  string `json:"content_update_version,omitempty"`
	ContentURL      string `json:"-"`
}

// Update results.
const (
	UpdateResultOK     = "ok"
	UpdateResultFailed = "failed"
)

// UpdateStatus is what the control surface shows about the update pipeline.
type UpdateStatus struct {
	InProgress    bool      `json:"in_progress"`
	Kind          string    `json:"kind,omitempty"`
	Version       string    `json:"version,omitempty"`
	Phase         string    `json:"phase,omitempty"`
	BytesExpected int64     `json:"bytes_expected"`
	BytesWritten  int64     `json:"bytes_written"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	LastResult    string    `json:"last_result,omitempty"`
	LastError     string    `json:"last_error,omitempty"`

	Manifest       Manifest     `json:"manifest"`
	Availability   Availability `json:"availability"`
	LastCheck      time.Time    `json:"last_check,omitempty"`
	LastCheckError string       `json:"last_check_error,omitempty"`
}
