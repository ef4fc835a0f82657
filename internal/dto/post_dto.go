package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreatePostRequest struct {
	Body       string   `json:"body"`
	Tags       []string `json:"tags"`
	MediaURLs  []string `json:"media_urls"`
	GameIGDBID *int64   `json:"game_igdb_id"`
}

type CommentRequest struct {
	Body string `json:"body"`
}

type CommentView struct {
	ID        uuid.UUID   `json:"id"`
	PostID    uuid.UUID   `json:"post_id"`
	Author    UserSummary `json:"author"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
}

type CommentPage struct {
	Items      []CommentView `json:"items"`
	NextCursor *Cursor       `json:"next_cursor"`
	NextToken  string        `json:"next_token,omitempty"`
	HasMore    bool          `json:"has_more"`
}

type MediaUploadResponse struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}
