package models

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MediaKind string

const (
	MediaNone  MediaKind = "none"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".m4v": true,
}

// MediaKindOf classifies a post by its attachments. Any video makes it a clip.
func MediaKindOf(urls []string) MediaKind {
	if len(urls) == 0 {
		return MediaNone
	}
	for _, u := range urls {
		p := u
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		if videoExtensions[strings.ToLower(path.Ext(p))] {
			return MediaVideo
		}
	}
	return MediaImage
}

type Post struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID                   `gorm:"type:uuid;not null;index" json:"user_id"`
	Body         string                      `gorm:"type:text" json:"body"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	MediaURLs    datatypes.JSONSlice[string] `gorm:"column:media_urls" json:"media_urls"`
	MediaKind    MediaKind                   `gorm:"size:10;not null;default:'none';index" json:"media_kind"`
	GameID       *uuid.UUID                  `gorm:"type:uuid;index" json:"game_id"`
	LikeCount    int                         `gorm:"default:0" json:"like_count"`
	CommentCount int                         `gorm:"default:0" json:"comment_count"`
	CreatedAt    time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
	User         User                        `gorm:"foreignKey:UserID" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PostLike struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_pair,priority:1" json:"user_id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_post_likes_pair,priority:2;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type Comment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID `gorm:"type:uuid;not null;index" json:"post_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
