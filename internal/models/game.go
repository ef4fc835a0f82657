package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Game mirrors an IGDB game. Edition and variant rows point at their canonical
// base game through ParentIGDBID.
type Game struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	IGDBID          int64                       `gorm:"column:igdb_id;not null;uniqueIndex" json:"igdb_id"`
	Name            string                      `gorm:"size:255;not null;index" json:"name"`
	Slug            string                      `gorm:"size:255" json:"slug"`
	CoverURL        string                      `gorm:"size:512" json:"cover_url"`
	ReleaseYear     *int                        `json:"release_year"`
	Summary         string                      `gorm:"type:text" json:"summary"`
	Aliases         datatypes.JSONSlice[string] `json:"aliases"`
	Genres          datatypes.JSONSlice[string] `json:"genres"`
	Platforms       datatypes.JSONSlice[string] `json:"platforms"`
	Category        int                         `gorm:"default:0" json:"category"`
	ParentIGDBID    *int64                      `gorm:"column:parent_igdb_id;index" json:"parent_igdb_id"`
	ParentCheckedAt *time.Time                  `json:"-"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// IsCanonical reports whether the game is a base game rather than an edition.
func (g *Game) IsCanonical() bool {
	return g.ParentIGDBID == nil
}
