package dto

import (
	"time"

	"github.com/google/uuid"
)

type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    *string   `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

// FollowResponse reports a rejected follow with OK=false and a reason
// ("self" or "blocked") instead of an HTTP error.
type FollowResponse struct {
	OK        bool   `json:"ok"`
	Following bool   `json:"following"`
	Reason    string `json:"reason,omitempty"`
}

type RelationshipState struct {
	Following  bool `json:"following"`
	FollowedBy bool `json:"followed_by"`
	IBlocked   bool `json:"i_blocked"`
	BlockedBy  bool `json:"blocked_by"`
	Muted      bool `json:"muted"`
}

type ProfileResponse struct {
	UserSummary
	FollowerCount  int64              `json:"follower_count"`
	FollowingCount int64              `json:"following_count"`
	Relationship   *RelationshipState `json:"relationship,omitempty"`
}

// ToggleResponse is the authoritative state after a like/mute/block toggle.
type ToggleResponse struct {
	OK        bool  `json:"ok"`
	State     bool  `json:"state"`
	LikeCount int64 `json:"like_count"`
}

type HydrateRequest struct {
	Kind string      `json:"kind"`
	IDs  []uuid.UUID `json:"ids"`
}

type Counts struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
}

type HydrateResponse struct {
	Liked  map[uuid.UUID]bool   `json:"liked"`
	Counts map[uuid.UUID]Counts `json:"counts"`
}

type NotificationView struct {
	ID        uuid.UUID   `json:"id"`
	Type      string      `json:"type"`
	Actor     UserSummary `json:"actor"`
	TargetID  *uuid.UUID  `json:"target_id"`
	Read      bool        `json:"read"`
	CreatedAt time.Time   `json:"created_at"`
}

type NotificationPage struct {
	Items      []NotificationView `json:"items"`
	NextCursor *Cursor            `json:"next_cursor"`
	NextToken  string             `json:"next_token,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type MarkReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
	All bool        `json:"all"`
}

type SidebarResponse struct {
	Profile      *UserResponse    `json:"profile"`
	FollowingIDs []uuid.UUID      `json:"following_ids"`
	UnreadCount  int64            `json:"unread_count"`
	Library      map[string]int64 `json:"library"`
}
