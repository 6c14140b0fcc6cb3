package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"ato_controller/internal/broadcast"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000 // 10s in ms

	errWsUnauthorized = "commands require a valid ?token="
	errWsBadCommand   = "invalid command"
)

// Upgrader for HTTP -> WebSocket. The UI is served from the same origin.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnect streams status frames to the client. Text frames sent by the
// client are decoded as commands when the connection carries a valid token.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)
	canCommand := h.wsAuthorized(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.Request.Context()

	// Replies from the reader go through the writer loop; gorilla allows a
	// single concurrent writer.
	replies := make(chan broadcast.Envelope, 4)
	done := make(chan struct{})
	go h.startReader(ctx, conn, canCommand, replies, done)

	var (
		frames <-chan []byte
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if h.hub != nil {
		ch, unsubscribe := h.hub.Subscribe()
		frames = ch
		h.metricsClients()
		defer func() {
			unsubscribe()
			h.metricsClients()
		}()
	} else {
		ticker = time.NewTicker(interval)
		tick = ticker.C
		defer ticker.Stop()

		// Send initial state immediately.
		if err := h.sendState(ctx, conn); err != nil {
			if h.log != nil {
				h.log.Infow("ws_write_failed_initial", "err", err)
			}
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case frame := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		case <-tick:
			if err := h.sendState(ctx, conn); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		case reply := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}
}

// Helper: parseInterval reads ?interval=2s or ?interval_ms=2000 with bounds.
// Only used when no hub is configured.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	interval := defaultInterval

	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}

	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}

	return interval
}

// Helper: startReader handles incoming command frames and detects closure.
func (h *Handler) startReader(ctx context.Context, conn *websocket.Conn, canCommand bool, replies chan<- broadcast.Envelope, done chan<- struct{}) {
	defer close(done)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply := h.handleCommandFrame(ctx, canCommand, data)
		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *Handler) handleCommandFrame(ctx context.Context, canCommand bool, data []byte) broadcast.Envelope {
	if !canCommand {
		return broadcast.Envelope{Type: "error", Error: errWsUnauthorized}
	}
	cmd, err := broadcast.DecodeCommand(data)
	if err != nil {
		return broadcast.Envelope{Type: "error", Error: errWsBadCommand}
	}
	if err := h.services.Control.Execute(ctx, cmd); err != nil {
		if h.log != nil {
			h.log.Errorw("ws_command_failed", "err", err)
		}
		return broadcast.Envelope{Type: "error", Error: errCommand}
	}
	return broadcast.Envelope{Type: "ack", Data: json.RawMessage(data)}
}

// Helper: sendState fetches and writes the current state with a write deadline.
func (h *Handler) sendState(ctx context.Context, conn *websocket.Conn) error {
	st, err := h.services.Monitoring.GetState(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_get_state_failed", "err", err)
		}
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(broadcast.Envelope{Type: "state", Data: st})
}

func (h *Handler) metricsClients() {
	if h.hub != nil {
		h.collector.SetWebsocketClients(h.hub.Subscribers())
	}
}
