package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationFollow     NotificationType = "follow"
	NotificationPostLike   NotificationType = "post_like"
	NotificationReviewLike NotificationType = "review_like"
	NotificationComment    NotificationType = "comment"
)

type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	ActorID   uuid.UUID        `gorm:"type:uuid;not null" json:"actor_id"`
	Type      NotificationType `gorm:"size:20;not null" json:"type"`
	TargetID  *uuid.UUID       `gorm:"type:uuid" json:"target_id"`
	ReadAt    *time.Time       `gorm:"index" json:"read_at"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	Actor     User             `gorm:"foreignKey:ActorID" json:"actor"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
