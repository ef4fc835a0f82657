package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LibraryStatus string

const (
	LibraryBacklog   LibraryStatus = "backlog"
	LibraryPlaying   LibraryStatus = "playing"
	LibraryCompleted LibraryStatus = "completed"
	LibraryDropped   LibraryStatus = "dropped"
)

var LibraryStatuses = []LibraryStatus{LibraryBacklog, LibraryPlaying, LibraryCompleted, LibraryDropped}

func (s LibraryStatus) Valid() bool {
	for _, v := range LibraryStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type LibraryEntry struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_library_user_game,priority:1" json:"user_id"`
	GameID    uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_library_user_game,priority:2;index" json:"game_id"`
	Status    LibraryStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Game      Game          `gorm:"foreignKey:GameID" json:"game"`
}

func (e *LibraryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
