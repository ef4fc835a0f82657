package services

import (
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// ClampLimit maps a requested page size into [1, MaxPageSize]; zero or
// negative means the default.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// Before returns a GORM scope for strict keyset pagination on
// (created_at DESC, id DESC). A nil or zero cursor means the first page.
func Before(c *dto.Cursor) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c.IsZero() {
			return db
		}
		at := c.CreatedAt.UTC()
		return db.Where("(created_at < ? OR (created_at = ? AND id < ?))", at, at, c.ID)
	}
}

func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}

func userSummary(u *models.User) dto.UserSummary {
	return dto.UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

func userResponse(u *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

func gameSummary(g *models.Game) dto.GameSummary {
	return dto.GameSummary{
		ID:           g.ID,
		IGDBID:       g.IGDBID,
		Name:         g.Name,
		Slug:         g.Slug,
		CoverURL:     g.CoverURL,
		ReleaseYear:  g.ReleaseYear,
		ParentIGDBID: g.ParentIGDBID,
	}
}
