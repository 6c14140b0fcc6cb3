package updater

import (
	"fmt"
	"time"
)

// Task is a background update job.
type Task struct {
	Kind      Kind
	Version   string
	URL       string
	StartedAt time.Time

	done chan struct{}
	err  error
}

// Go runs fn on its own goroutine. A panic in fn is turned into the task's
// error so a bad image never takes the control cycle down with it.
func Go(kind Kind, version, url string, startedAt time.Time, fn func() error) *Task {
	t := &Task{
		Kind:      kind,
		Version:   version,
		URL:       url,
		StartedAt: startedAt,
		done:      make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("update task panicked: %v", r)
			}
		}()
		t.err = fn()
	}()
	return t
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Finished reports whether Done is closed.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the task result, or nil while it is still running.
func (t *Task) Err() error {
	if !t.Finished() {
		return nil
	}
	return t.err
}
