package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/gamdit/gamebox/internal/events"
)

// publish is best-effort: the change that caused the event has already
// committed, and self actions never notify.
func publish(ctx context.Context, p events.Publisher, e events.Event) {
	if p == nil || e.SelfInflicted() {
		return
	}
	e.OccurredAt = time.Now().UTC()
	if err := p.Publish(ctx, e); err != nil {
		slog.Error("failed to publish event", "type", string(e.Type), "error", err)
	}
}
