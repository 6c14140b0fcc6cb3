package broadcast

import (
	"encoding/json"
	"sync"

	"ato_controller/internal/logger"
	"ato_controller/internal/models"
)

const subscriberBuffer = 8

// Envelope is the frame format shared by every websocket message.
type Envelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Hub keeps the last encoded status and hands every new one to the
// subscribed websocket connections.
type Hub struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
	last []byte
	log  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{subs: make(map[chan []byte]struct{}), log: log}
}

func (h *Hub) Broadcast(st models.Status) {
	frame, err := json.Marshal(Envelope{Type: "state", Data: st})
	if err != nil {
		h.log.Errorw("status_encode_failed", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = frame
	for ch := range h.subs {
		select {
		case ch <- frame:
		default:
			h.log.Debugw("ws_frame_dropped")
		}
	}
}

// Subscribe returns a channel primed with the latest status and a function
// that removes the subscription.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.last != nil {
		ch <- h.last
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
