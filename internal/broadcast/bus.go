// Package broadcast fans state changes out to a user's other open sessions
// (browser tabs, devices) so they converge without refetching.
package broadcast

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type Action string

const (
	LikePost     Action = "like_post"
	LikeReview   Action = "like_review"
	Follow       Action = "follow"
	Mute         Action = "mute"
	Block        Action = "block"
	Notification Action = "notification"
)

// Message describes a committed change. Origin is the session that made it;
// that session already shows the new state and is skipped on delivery.
type Message struct {
	UserID   uuid.UUID `json:"user_id"`
	Origin   string    `json:"origin,omitempty"`
	Action   Action    `json:"action"`
	TargetID string    `json:"target_id,omitempty"`
	State    bool      `json:"state"`
	Count    *int64    `json:"count,omitempty"`
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

func Decode(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

// Bus is best-effort: messages may be dropped, and nothing is replayed to
// sessions that connect later.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(userID uuid.UUID, sessionID string) *Subscription
	Close() error
}
