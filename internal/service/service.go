package service

import (
	"context"
	"time"

	"ato_controller/internal/control"
	"ato_controller/internal/models"
	"ato_controller/internal/updater"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	SignUpOpen() (bool, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
	ChangePassword(userID int, current, next string) error
}

// Control exposes the operator commands of the control cycle. Commands are
// applied synchronously and are visible in the next status snapshot.
type Control interface {
	Run(ctx context.Context, tick time.Duration)
	SetMaintenance(ctx context.Context, enable bool) error
	ResetError(ctx context.Context) error
	Execute(ctx context.Context, cmd models.Command) error
}

// Settings owns the persisted device configuration.
type Settings interface {
	Device() models.DeviceConfig
	SetTempRange(ctx context.Context, minTemp, maxTemp float64) error
	SetDeviceName(ctx context.Context, name string) error
	InstalledContentVersion() string
}

// Monitoring exposes read-only state.
type Monitoring interface {
	GetState(ctx context.Context) (models.Status, error)
	TemperatureHistory(ctx context.Context) ([]models.TemperatureReading, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.Event, error)
}

// Updates drives manifest checks and the update task.
type Updates interface {
	Check(ctx context.Context) (models.Availability, error)
	Apply(ctx context.Context) (updater.Kind, error)
	Status() models.UpdateStatus
	Active() bool
}

// StatusBuilder turns a control state into the wire snapshot.
type StatusBuilder interface {
	Build(st control.State, now time.Time) models.Status
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Settings
	Monitoring
	EventLog
	Updates
	Authorization
}
