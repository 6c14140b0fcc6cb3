package service

import (
	"context"
	"testing"
	"time"

	"ato_controller/internal/models"
)

func TestJournal_WritesAndFlushesOnCancel(t *testing.T) {
	events := &fakeEventRepo{}
	readings := &fakeReadingRepo{}
	j := NewJournal(events, readings, 24*time.Hour, nil)
	j.SetEventRetention(30 * 24 * time.Hour)
	j.now = func() time.Time { return boot }

	j.Event(models.Event{Type: models.EventPumpStart, Description: "Pump started"})
	j.Reading(models.TemperatureReading{Value: 25.1, Timestamp: boot})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	j.Run(ctx)

	if got := events.types(); len(got) != 1 || got[0] != models.EventPumpStart {
		t.Fatalf("events = %v", got)
	}
	events.mu.Lock()
	at := events.appended[0].OccurredAt
	events.mu.Unlock()
	if !at.Equal(boot) {
		t.Fatalf("occurred_at = %v, want %v", at, boot)
	}
	readings.mu.Lock()
	defer readings.mu.Unlock()
	if len(readings.readings) != 1 {
		t.Fatalf("readings = %+v", readings.readings)
	}
	if len(readings.pruned) != 1 || !readings.pruned[0].Equal(boot.Add(-24*time.Hour)) {
		t.Fatalf("prune cutoffs = %v", readings.pruned)
	}
	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.pruned) != 1 || !events.pruned[0].Equal(boot.Add(-30*24*time.Hour)) {
		t.Fatalf("event prune cutoffs = %v", events.pruned)
	}
}

func TestJournal_DropsWhenFull(t *testing.T) {
	events := &fakeEventRepo{}
	j := NewJournal(events, nil, 0, nil)

	for i := 0; i < journalBuffer+10; i++ {
		j.Event(models.Event{Type: models.EventConfig})
	}
	j.flush()

	if got := len(events.types()); got != journalBuffer {
		t.Fatalf("wrote %d events, want %d", got, journalBuffer)
	}
}

func TestJournal_AppendErrorIsLogged(t *testing.T) {
	events := &fakeEventRepo{appendErr: errBoom}
	j := NewJournal(events, nil, 0, nil)

	j.Event(models.Event{Type: models.EventError})
	j.flush()

	if got := events.types(); len(got) != 0 {
		t.Fatalf("events = %v", got)
	}
}

func TestJournal_NilIsNoop(t *testing.T) {
	var j *Journal
	j.Event(models.Event{Type: models.EventConfig})
	j.Reading(models.TemperatureReading{Value: 1})
}
