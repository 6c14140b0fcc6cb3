package models

import "time"

// Event types written to the operator log.
const (
	EventPumpStart    = "PUMP_START"
	EventPumpStop     = "PUMP_STOP"
	EventError        = "ERROR"
	EventErrorCleared = "ERROR_CLEARED"
	EventMaintenance  = "MAINTENANCE"
	EventTempAlert    = "TEMP_ALERT"
	EventConfig       = "CONFIG"
	EventUpdateCheck  = "UPDATE_CHECK"
	EventUpdateStart  = "UPDATE_START"
	EventUpdateDone   = "UPDATE_DONE"
	EventUpdateFailed = "UPDATE_FAILED"
)

var eventTypes = map[string]struct{}{
	EventPumpStart: {}, EventPumpStop: {}, EventError: {}, EventErrorCleared: {},
	EventMaintenance: {}, EventTempAlert: {}, EventConfig: {}, EventUpdateCheck: {},
	EventUpdateStart: {}, EventUpdateDone: {}, EventUpdateFailed: {},
}

// IsEventType reports whether t is one of the event types above.
func IsEventType(t string) bool {
	_, ok := eventTypes[t]
	return ok
}

// Event is a single log entry.
type Event struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
