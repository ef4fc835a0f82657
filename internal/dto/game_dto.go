package dto

import (
	"time"

	"github.com/google/uuid"
)

type GameSummary struct {
	ID           uuid.UUID `json:"id"`
	IGDBID       int64     `json:"igdb_id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	CoverURL     string    `json:"cover_url"`
	ReleaseYear  *int      `json:"release_year"`
	ParentIGDBID *int64    `json:"parent_igdb_id,omitempty"`
}

type GameDetail struct {
	GameSummary
	Summary       string      `json:"summary"`
	Aliases       []string    `json:"aliases"`
	Genres        []string    `json:"genres"`
	Platforms     []string    `json:"platforms"`
	AverageRating *float64    `json:"average_rating"`
	ReviewCount   int64       `json:"review_count"`
	ViewerReview  *ReviewView `json:"viewer_review"`
	LibraryStatus *string     `json:"library_status"`
}

type BrowseResponse struct {
	Section string        `json:"section"`
	Games   []GameSummary `json:"games"`
}

type SearchResponse struct {
	Games []GameSummary `json:"games"`
	Users []UserSummary `json:"users"`
}

type ReviewRequest struct {
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

type ReviewView struct {
	ID        uuid.UUID   `json:"id"`
	Author    UserSummary `json:"author"`
	Rating    int         `json:"rating"`
	Stars     float64     `json:"stars"`
	Body      string      `json:"body"`
	LikeCount int64       `json:"like_count"`
	Liked     bool        `json:"liked"`
	CreatedAt time.Time   `json:"created_at"`
}

type ReviewPage struct {
	Items      []ReviewView `json:"items"`
	NextCursor *Cursor      `json:"next_cursor"`
	NextToken  string       `json:"next_token,omitempty"`
	HasMore    bool         `json:"has_more"`
}

type LibraryRequest struct {
	Status string `json:"status"`
}

type LibraryEntryView struct {
	Status    string      `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
	Game      GameSummary `json:"game"`
}

type JobRequest struct {
	Limit int `json:"limit"`
}

type JobResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
}
