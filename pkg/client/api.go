// Package client is the browser-side model of a Gamebox session: it applies
// like and relationship toggles optimistically, keeps the tabs of one profile
// in step, and talks to the HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/google/uuid"
)

// Kind selects which like table a toggle targets.
type Kind string

const (
	KindPost   Kind = "post"
	KindReview Kind = "review"
)

// API is the slice of the HTTP surface a Session needs.
type API interface {
	ToggleLike(ctx context.Context, session string, kind Kind, id uuid.UUID) (*dto.ToggleResponse, error)
	Follow(ctx context.Context, session string, id uuid.UUID) (*dto.FollowResponse, error)
	Unfollow(ctx context.Context, session string, id uuid.UUID) error
	SetMute(ctx context.Context, session string, id uuid.UUID, on bool) error
	SetBlock(ctx context.Context, session string, id uuid.UUID, on bool) error
	Relationship(ctx context.Context, id uuid.UUID) (*dto.RelationshipState, error)
	Hydrate(ctx context.Context, kind Kind, ids []uuid.UUID) (*dto.HydrateResponse, error)
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gamebox api: %d %s", e.Status, e.Message)
}

// HTTPClient implements API against a running server.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTPClient) ToggleLike(ctx context.Context, session string, kind Kind, id uuid.UUID) (*dto.ToggleResponse, error) {
	var res dto.ToggleResponse
	path := fmt.Sprintf("/api/%ss/%s/like", kind, id)
	if err := c.do(ctx, http.MethodPost, path, session, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Follow(ctx context.Context, session string, id uuid.UUID) (*dto.FollowResponse, error) {
	var res dto.FollowResponse
	if err := c.do(ctx, http.MethodPost, "/api/follows/"+id.String(), session, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Unfollow(ctx context.Context, session string, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/follows/"+id.String(), session, nil, nil)
}

func (c *HTTPClient) SetMute(ctx context.Context, session string, id uuid.UUID, on bool) error {
	return c.do(ctx, onOff(on), "/api/mutes/"+id.String(), session, nil, nil)
}

func (c *HTTPClient) SetBlock(ctx context.Context, session string, id uuid.UUID, on bool) error {
	return c.do(ctx, onOff(on), "/api/blocks/"+id.String(), session, nil, nil)
}

func (c *HTTPClient) Relationship(ctx context.Context, id uuid.UUID) (*dto.RelationshipState, error) {
	var res dto.RelationshipState
	if err := c.do(ctx, http.MethodGet, "/api/users/"+id.String()+"/relationship", "", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) Hydrate(ctx context.Context, kind Kind, ids []uuid.UUID) (*dto.HydrateResponse, error) {
	var res dto.HydrateResponse
	body := dto.HydrateRequest{Kind: string(kind), IDs: ids}
	if err := c.do(ctx, http.MethodPost, "/api/likes/hydrate", "", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func onOff(on bool) string {
	if on {
		return http.MethodPost
	}
	return http.MethodDelete
}

func (c *HTTPClient) do(ctx context.Context, method, path, session string, body, dst interface{}) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if session != "" {
		req.Header.Set(viewer.SessionHeader, session)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &StatusError{Status: resp.StatusCode, Message: e.Message}
	}
	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", method, path, err)
	}
	return nil
}

// IsStatus reports whether err is an API answer with the given status.
func IsStatus(err error, status int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == status
}
