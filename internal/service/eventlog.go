package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ato_controller/internal/models"
	"ato_controller/internal/repository"
)

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errNegativeLimit    = errors.New("limit must not be negative")
	// ErrUnknownEventType is returned for a type filter no event carries.
	ErrUnknownEventType = errors.New("unknown event type")
)

// LogFilter selects operator log entries. Zero bounds are open.
type LogFilter struct {
	From  time.Time // inclusive
	To    time.Time // inclusive
	Type  string    // one of the models.Event* types, any case
	Limit int       // newest N; 0 returns everything in range
}

// EventLogService reads the operator log written by the controller,
// the settings service and update tasks.
type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from, to := normalizeToUTC(f.From), normalizeToUTC(f.To)
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	eventType := normalizeEventType(f.Type)
	if eventType != "" && !models.IsEventType(eventType) {
		return time.Time{}, time.Time{}, "", fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	return from, to, eventType, nil
}

// List returns matching events oldest first. With a Limit only the newest
// Limit events are kept, still in ascending order.
func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.Event, error) {
	if f.Limit < 0 {
		return nil, errNegativeLimit
	}
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, repository.EventQuery{From: from, To: to, Type: typ, Limit: f.Limit})
}
