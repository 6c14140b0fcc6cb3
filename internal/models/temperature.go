package models

import "time"

type TemperatureReading struct {
	Value     float64   `json:"temperature"`
	Timestamp time.Time `json:"timestamp"`
}
