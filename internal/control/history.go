package control

import (
	"time"

	"ato_controller/internal/models"
)

// History keeps temperature readings, oldest first, for a fixed retention
// window. It is not safe for concurrent use; the controller guards it.
type History struct {
	retention time.Duration
	readings  []models.TemperatureReading
}

func NewHistory(retention time.Duration) *History {
	return &History{retention: retention}
}

// Add appends a reading and evicts everything older than the retention
// window relative to it.
func (h *History) Add(r models.TemperatureReading) {
	h.readings = append(h.readings, r)
	h.Evict(r.Timestamp)
}

// Evict drops readings older than now minus the retention window.
func (h *History) Evict(now time.Time) {
	cutoff := now.Add(-h.retention)
	i := 0
	for i < len(h.readings) && h.readings[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.readings = append(h.readings[:0], h.readings[i:]...)
	}
}

// Readings returns a copy of the retained readings.
func (h *History) Readings() []models.TemperatureReading {
	out := make([]models.TemperatureReading, len(h.readings))
	copy(out, h.readings)
	return out
}

func (h *History) Len() int { return len(h.readings) }
