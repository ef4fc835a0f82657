package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientToggleLike(t *testing.T) {
	post := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/posts/"+post.String()+"/like", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "tab-1", r.Header.Get(viewer.SessionHeader))
		_ = json.NewEncoder(w).Encode(dto.ToggleResponse{OK: true, State: true, LikeCount: 3})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "tok")
	res, err := c.ToggleLike(context.Background(), "tab-1", KindPost, post)
	require.NoError(t, err)
	require.Equal(t, &dto.ToggleResponse{OK: true, State: true, LikeCount: 3}, res)
}

func TestHTTPClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: true, Message: "cannot mute yourself"})
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, "").SetMute(context.Background(), "", uuid.New(), false)
	require.True(t, IsStatus(err, http.StatusBadRequest))
	require.Contains(t, err.Error(), "cannot mute yourself")
}

func TestListenAppliesServerBroadcasts(t *testing.T) {
	target := uuid.New()
	count := int64(4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		assert.NotEmpty(t, r.URL.Query().Get("session_id"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(broadcast.Message{Action: broadcast.Follow, TargetID: target.String(), State: true})
		_ = conn.WriteJSON(broadcast.Message{Action: broadcast.Notification, State: true, Count: &count})
		// hold the socket open until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	s := newProfile(t, newFakeAPI()).NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Listen(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/realtime", "tok")
	}()

	require.Eventually(t, func() bool {
		return s.State().Relationship(target).Following && s.State().Unread() == 4
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
