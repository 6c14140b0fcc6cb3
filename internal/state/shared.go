// Package state is the single synchronisation point between the control
// cycle, the manifest checker and the update task. Readers get copies.
package state

import (
	"sync"
	"time"

	"ato_controller/internal/control"
	"ato_controller/internal/models"
)

// Shared guards the snapshots published by the long running goroutines.
type Shared struct {
	mu      sync.RWMutex
	control control.State
	update  models.UpdateStatus
}

func New(initial control.State) *Shared {
	return &Shared{control: initial}
}

// Control returns the last control state published by the cycle.
func (s *Shared) Control() control.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.control
}

func (s *Shared) SetControl(st control.State) {
	s.mu.Lock()
	s.control = st
	s.mu.Unlock()
}

// Availability returns the flags derived from the last good manifest.
func (s *Shared) Availability() models.Availability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.update.Availability
}

// SetManifest replaces the manifest wholesale after a successful check.
func (s *Shared) SetManifest(m models.Manifest, a models.Availability, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update.Manifest = m
	s.update.Availability = a
	s.update.LastCheck = at
	s.update.LastCheckError = ""
}

// RecordCheckError keeps the previous manifest and notes why the check failed.
func (s *Shared) RecordCheckError(err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.update.LastCheck = at
	s.update.LastCheckError = err.Error()
}

// Update returns a copy of the update pipeline status.
func (s *Shared) Update() models.UpdateStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.update
}

// PublishUpdate lets the update task mutate its part of the status.
func (s *Shared) PublishUpdate(fn func(u *models.UpdateStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.update)
}
