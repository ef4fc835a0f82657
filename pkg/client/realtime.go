package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gorilla/websocket"
)

// Listen applies server broadcasts (changes from this user's other devices,
// new notifications) until ctx ends or the socket drops. wsURL points at
// /api/realtime.
func (s *Session) Listen(ctx context.Context, wsURL, token string) error {
	u, err := url.Parse(wsURL)
	if err != nil {
		return fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", s.ID)
	if token != "" {
		q.Set("access_token", token)
	}
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect realtime: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var msg broadcast.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.apply(msg)
	}
}
