package service

import (
	"context"
	"time"

	"ato_controller/internal/logger"
	"ato_controller/internal/models"
	"ato_controller/internal/repository"
)

const (
	journalBuffer = 256
	pruneInterval = time.Hour
	writeTimeout  = 5 * time.Second
)

type journalEntry struct {
	event   *models.Event
	reading *models.TemperatureReading
}

// Journal writes events and temperature readings on its own goroutine so a
// slow disk never stalls the control cycle. Entries are dropped, with a
// warning, when the buffer is full.
type Journal struct {
	events    repository.EventRepo
	readings  repository.ReadingRepo
	retention time.Duration
	// eventRetention bounds the operator log; zero keeps every event.
	eventRetention time.Duration
	queue          chan journalEntry
	now            func() time.Time
	log            *logger.Logger
}

func NewJournal(events repository.EventRepo, readings repository.ReadingRepo, retention time.Duration, log *logger.Logger) *Journal {
	if log == nil {
		log = logger.Nop()
	}
	return &Journal{
		events:    events,
		readings:  readings,
		retention: retention,
		queue:     make(chan journalEntry, journalBuffer),
		now:       time.Now,
		log:       log,
	}
}

// SetEventRetention makes the hourly prune drop events older than d.
// Call before Run.
func (j *Journal) SetEventRetention(d time.Duration) { j.eventRetention = d }

// Event queues e. OccurredAt defaults to now. A nil Journal drops it.
func (j *Journal) Event(e models.Event) {
	if j == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = j.now().UTC()
	}
	j.enqueue(journalEntry{event: &e})
}

func (j *Journal) Reading(r models.TemperatureReading) {
	if j == nil {
		return
	}
	j.enqueue(journalEntry{reading: &r})
}

func (j *Journal) enqueue(e journalEntry) {
	select {
	case j.queue <- e:
	default:
		j.log.Warnw("journal_full", "dropped_event", e.event != nil)
	}
}

// Run writes queued entries until ctx is canceled, then flushes what is
// left in the buffer.
func (j *Journal) Run(ctx context.Context) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	j.prune()
	for {
		select {
		case <-ctx.Done():
			j.flush()
			return
		case e := <-j.queue:
			j.write(e)
		case <-t.C:
			j.prune()
		}
	}
}

func (j *Journal) flush() {
	for {
		select {
		case e := <-j.queue:
			j.write(e)
		default:
			return
		}
	}
}

func (j *Journal) write(e journalEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	switch {
	case e.event != nil && j.events != nil:
		if err := j.events.Append(ctx, *e.event); err != nil {
			j.log.Errorw("event_append_failed", "type", e.event.Type, "err", err)
		}
	case e.reading != nil && j.readings != nil:
		if err := j.readings.Append(ctx, *e.reading); err != nil {
			j.log.Errorw("reading_append_failed", "err", err)
		}
	}
}

func (j *Journal) prune() {
	if j.readings != nil && j.retention > 0 {
		j.pruneWith("readings", j.readings.PruneBefore, j.retention)
	}
	if j.events != nil && j.eventRetention > 0 {
		j.pruneWith("events", j.events.PruneBefore, j.eventRetention)
	}
}

func (j *Journal) pruneWith(what string, fn func(context.Context, time.Time) (int64, error), keep time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	n, err := fn(ctx, j.now().Add(-keep))
	if err != nil {
		j.log.Errorw("prune_failed", "table", what, "err", err)
		return
	}
	if n > 0 {
		j.log.Debugw("pruned", "table", what, "count", n)
	}
}
