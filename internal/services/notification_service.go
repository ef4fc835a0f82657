package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/events"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationService struct {
	db  *gorm.DB
	rel *RelationshipService
	bus broadcast.Bus
}

// NewNotificationService accepts a nil bus; new notifications are then only
// visible on the next fetch.
func NewNotificationService(db *gorm.DB, rel *RelationshipService, bus broadcast.Bus) *NotificationService {
	return &NotificationService{db: db, rel: rel, bus: bus}
}

// Handle turns an activity event into a notification row. It is the events
// handler for both the direct and the Kafka paths.
func (s *NotificationService) Handle(ctx context.Context, e events.Event) error {
	if e.SelfInflicted() {
		return nil
	}
	blocked, err := s.rel.BlockedEitherWay(ctx, e.RecipientID)
	if err != nil {
		return err
	}
	if _, ok := blocked[e.ActorID]; ok {
		return nil
	}

	db := s.db.WithContext(ctx)
	typ := models.NotificationType(e.Type)

	// a like toggled off and on again should not notify twice
	q := db.Model(&models.Notification{}).
		Where("user_id = ? AND actor_id = ? AND type = ? AND read_at IS NULL", e.RecipientID, e.ActorID, typ)
	if e.TargetID != nil {
		q = q.Where("target_id = ?", *e.TargetID)
	} else {
		q = q.Where("target_id IS NULL")
	}
	var pending int64
	if err := q.Count(&pending).Error; err != nil {
		return fmt.Errorf("failed to check notifications: %w", err)
	}
	if pending > 0 && typ != models.NotificationComment {
		return nil
	}

	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	n := models.Notification{
		UserID:    e.RecipientID,
		ActorID:   e.ActorID,
		Type:      typ,
		TargetID:  e.TargetID,
		CreatedAt: at.UTC(),
	}
	if err := db.Omit("Actor").Create(&n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	s.announce(ctx, e.RecipientID)
	return nil
}

func (s *NotificationService) announce(ctx context.Context, userID uuid.UUID) {
	if s.bus == nil {
		return
	}
	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		slog.Warn("failed to count unread notifications", "user_id", userID, "error", err)
		return
	}
	msg := broadcast.Message{UserID: userID, Action: broadcast.Notification, State: count > 0, Count: &count}
	if err := s.bus.Publish(ctx, msg); err != nil {
		slog.Warn("failed to broadcast notification", "user_id", userID, "error", err)
	}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, cursor *dto.Cursor, limit int) (*dto.NotificationPage, error) {
	limit = ClampLimit(limit)
	var rows []models.Notification
	err := s.db.WithContext(ctx).Preload("Actor").
		Where("user_id = ?", userID).
		Scopes(Before(cursor), NewestFirst).
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}

	page := &dto.NotificationPage{Items: make([]dto.NotificationView, 0, len(rows))}
	if len(rows) > limit {
		rows = rows[:limit]
		page.HasMore = true
	}
	for i := range rows {
		n := &rows[i]
		page.Items = append(page.Items, dto.NotificationView{
			ID:        n.ID,
			Type:      string(n.Type),
			Actor:     userSummary(&n.Actor),
			TargetID:  n.TargetID,
			Read:      n.ReadAt != nil,
			CreatedAt: n.CreatedAt,
		})
	}
	if page.HasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &dto.Cursor{ID: last.ID, CreatedAt: last.CreatedAt}
		page.NextToken = page.NextCursor.Token()
	}
	return page, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&n).Error
	return n, err
}

// MarkRead marks the given notifications, or all of them, as read and returns
// the remaining unread count.
func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, req *dto.MarkReadRequest) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID)
	switch {
	case req.All:
	case len(req.IDs) > 0:
		q = q.Where("id IN ?", req.IDs)
	default:
		return s.UnreadCount(ctx, userID)
	}
	if err := q.Update("read_at", time.Now().UTC()).Error; err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}

	count, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.bus != nil {
		msg := broadcast.Message{UserID: userID, Action: broadcast.Notification, State: count > 0, Count: &count}
		if err := s.bus.Publish(ctx, msg); err != nil {
			slog.Warn("failed to broadcast read state", "user_id", userID, "error", err)
		}
	}
	return count, nil
}
