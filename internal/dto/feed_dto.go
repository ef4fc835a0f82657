package dto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the (created_at, id) of the last item on a page.
type Cursor struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// IsZero reports whether the cursor points nowhere. A zero cursor is the
// first page.
func (c *Cursor) IsZero() bool {
	return c == nil || c.ID == uuid.Nil || c.CreatedAt.IsZero()
}

// Token encodes the cursor for use in a query string.
func (c Cursor) Token() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a Token. An empty token is the first page.
func ParseCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, ErrInvalidCursor
	}
	createdAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	return &Cursor{ID: uid, CreatedAt: createdAt}, nil
}

type FeedRequest struct {
	Tab    string          `json:"tab"`
	Filter string          `json:"filter"`
	Cursor json.RawMessage `json:"cursor"`
	Limit  int             `json:"limit"`
}

// ParseCursor accepts either a cursor object or a Token string. The error is
// ErrInvalidCursor when the value is present but unusable.
func (r FeedRequest) ParseCursor() (*Cursor, error) {
	if len(r.Cursor) == 0 || string(r.Cursor) == "null" {
		return nil, nil
	}
	var token string
	if err := json.Unmarshal(r.Cursor, &token); err == nil {
		return ParseCursor(token)
	}
	var c Cursor
	if err := json.Unmarshal(r.Cursor, &c); err != nil || c.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

const (
	FeedKindPost   = "post"
	FeedKindReview = "review"
)

// FeedItem is a post or a review. Post-only and review-only fields are left
// empty for the other kind.
type FeedItem struct {
	Kind          string       `json:"kind"`
	ID            uuid.UUID    `json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	Author        UserSummary  `json:"author"`
	Body          string       `json:"body"`
	Tags          []string     `json:"tags,omitempty"`
	MediaURLs     []string     `json:"media_urls,omitempty"`
	MediaKind     string       `json:"media_kind,omitempty"`
	Rating        *int         `json:"rating,omitempty"`
	Stars         *float64     `json:"stars,omitempty"`
	Game          *GameSummary `json:"game,omitempty"`
	LikeCount     int64        `json:"like_count"`
	CommentCount  int64        `json:"comment_count"`
	LikedByViewer bool         `json:"liked_by_viewer"`
}

type FeedResponse struct {
	Items      []FeedItem `json:"items"`
	NextCursor *Cursor    `json:"next_cursor"`
	NextToken  string     `json:"next_token,omitempty"`
	HasMore    bool       `json:"has_more"`
}

// EmptyFeed is what read endpoints degrade to.
func EmptyFeed() FeedResponse {
	return FeedResponse{Items: []FeedItem{}}
}
