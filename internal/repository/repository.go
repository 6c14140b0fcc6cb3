package repository

import (
	"context"
	"database/sql"
	"time"

	"ato_controller/internal/models"
)

// Authorization stores operator accounts.
type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
	GetByID(id int) (*models.User, error)
	UpdatePassword(id int, hash string) error
	Count() (int, error)
}

// EventQuery selects events. Zero bounds are open; Limit > 0 keeps only
// the newest Limit matches.
type EventQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.Event) error
	List(ctx context.Context, q EventQuery) ([]models.Event, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

// ReadingRepo persists temperature samples so the history survives restarts.
type ReadingRepo interface {
	Append(ctx context.Context, r models.TemperatureReading) error
	Since(ctx context.Context, from time.Time) ([]models.TemperatureReading, error)
	PruneBefore(ctx context.Context, before time.Time) (int64, error)
}

// SettingsRepo is a small durable key/value store. Put returns only after the
// value has reached disk.
type SettingsRepo interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

type Repository struct {
	EventRepo   EventRepo
	ReadingRepo ReadingRepo
	Auth        Authorization
	Settings    SettingsRepo
}

func NewRepository(db *sql.DB, settings SettingsRepo) *Repository {
	return &Repository{
		EventRepo:   NewEventSQLite(db),
		ReadingRepo: NewReadingSQLite(db),
		Auth:        NewUserRepository(db),
		Settings:    settings,
	}
}
