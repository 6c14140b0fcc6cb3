// Package broadcast fans status snapshots out to subscribers. Broadcast never
// blocks the caller: slow subscribers lose frames, not the control cycle.
package broadcast

import "ato_controller/internal/models"

type Broadcaster interface {
	Broadcast(st models.Status)
}

// Multi sends to every member in order.
type Multi []Broadcaster

func (m Multi) Broadcast(st models.Status) {
	for _, b := range m {
		if b != nil {
			b.Broadcast(st)
		}
	}
}
