package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"ato_controller/internal/models"
	"ato_controller/internal/repository"
)

// memSettings is an in-memory repository.SettingsRepo.
type memSettings struct {
	mu     sync.Mutex
	data   map[string][]byte
	putErr error
	puts   int
}

func newMemSettings() *memSettings { return &memSettings{data: map[string][]byte{}} }

func (m *memSettings) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *memSettings) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// recordingSink collects events synchronously.
type recordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingSink) Event(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// fakeReadingRepo is an in-memory repository.ReadingRepo.
type fakeReadingRepo struct {
	mu       sync.Mutex
	readings []models.TemperatureReading
	sinceErr error
	pruned   []time.Time
}

func (f *fakeReadingRepo) Append(_ context.Context, r models.TemperatureReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, r)
	return nil
}

func (f *fakeReadingRepo) Since(_ context.Context, from time.Time) ([]models.TemperatureReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sinceErr != nil {
		return nil, f.sinceErr
	}
	var out []models.TemperatureReading
	for _, r := range f.readings {
		if !r.Timestamp.Before(from) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReadingRepo) PruneBefore(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = append(f.pruned, before)
	return 0, nil
}

// staticSettings satisfies DeviceSettings.
type staticSettings struct {
	device  models.DeviceConfig
	content string
}

func (s staticSettings) Device() models.DeviceConfig     { return s.device }
func (s staticSettings) InstalledContentVersion() string { return s.content }

var errBoom = errors.New("boom")
