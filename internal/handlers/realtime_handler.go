package handlers

import (
	"log/slog"
	"time"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	realtimeUserKey    = "realtime_user"
	realtimeSessionKey = "realtime_session"
	realtimePing       = 30 * time.Second
	realtimeWriteWait  = 10 * time.Second
)

// RealtimeHandler streams broadcast messages to one session over a websocket.
type RealtimeHandler struct {
	bus broadcast.Bus
}

func NewRealtimeHandler(bus broadcast.Bus) *RealtimeHandler {
	return &RealtimeHandler{bus: bus}
}

// Upgrade authenticates the request before the protocol switch; after it the
// fiber context is gone and only Locals survive.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	userID, err := viewer.UserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	session := viewer.SessionID(c)
	if session == "" {
		session = uuid.NewString()
	}
	c.Locals(realtimeUserKey, userID)
	c.Locals(realtimeSessionKey, session)
	return c.Next()
}

func (h *RealtimeHandler) Stream() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *RealtimeHandler) serve(conn *websocket.Conn) {
	userID, _ := conn.Locals(realtimeUserKey).(uuid.UUID)
	session, _ := conn.Locals(realtimeSessionKey).(string)

	sub := h.bus.Subscribe(userID, session)
	defer sub.Close()
	metrics.RealtimeSessions.Inc()
	defer metrics.RealtimeSessions.Dec()

	// Clients never send anything meaningful; reading only detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(realtimePing)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				slog.Debug("realtime write failed", "user_id", userID, "error", err)
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(realtimeWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
