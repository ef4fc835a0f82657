package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinRating = 0
	MaxRating = 100
)

// Review is a rating on a 0-100 scale, shown as 0-5 stars.
type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_user_game,priority:1" json:"user_id"`
	GameID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_user_game,priority:2;index" json:"game_id"`
	Rating    int       `gorm:"not null" json:"rating"`
	Body      string    `gorm:"type:text" json:"body"`
	LikeCount int       `gorm:"default:0" json:"like_count"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Game      Game      `gorm:"foreignKey:GameID" json:"-"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Stars converts the rating to the 0-5 display scale.
func (r *Review) Stars() float64 {
	return float64(r.Rating) / 20
}

type ReviewLike struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_likes_pair,priority:1" json:"user_id"`
	ReviewID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_likes_pair,priority:2;index" json:"review_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *ReviewLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
