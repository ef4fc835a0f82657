// Package events carries activity side effects (follow, like, comment) from the
// request path to whoever turns them into notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	Follow     Type = "follow"
	PostLike   Type = "post_like"
	ReviewLike Type = "review_like"
	Comment    Type = "comment"
)

type Event struct {
	Type        Type       `json:"type"`
	ActorID     uuid.UUID  `json:"actor_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	TargetID    *uuid.UUID `json:"target_id,omitempty"`
	OccurredAt  time.Time  `json:"occurred_at"`
}

// SelfInflicted reports whether the actor would be notifying themselves.
func (e Event) SelfInflicted() bool {
	return e.ActorID == e.RecipientID
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(b []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(b, &e)
	return e, err
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Handler func(ctx context.Context, e Event) error

// DirectPublisher hands events to a handler in-process. It is used when no
// broker is configured.
type DirectPublisher struct {
	handler Handler
}

func NewDirectPublisher(handler Handler) *DirectPublisher {
	return &DirectPublisher{handler: handler}
}

func (p *DirectPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return p.handler(ctx, e)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
