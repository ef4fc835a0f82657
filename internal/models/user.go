package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the account and public profile row. Username stays nil until
// onboarding picks one.
type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string         `gorm:"not null;size:255;uniqueIndex" json:"-"`
	Username    *string        `gorm:"size:20;uniqueIndex" json:"username"`
	DisplayName string         `gorm:"size:50" json:"display_name"`
	AvatarURL   string         `gorm:"size:512" json:"avatar_url"`
	Role        string         `gorm:"size:20;default:'user'" json:"-"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Handle returns the username, or an empty string before onboarding.
func (u *User) Handle() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}
