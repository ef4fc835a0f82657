package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/events"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var (
	ErrUnknownKind    = errors.New("unknown like kind")
	ErrTargetNotFound = errors.New("target not found")
)

type LikeKind string

const (
	LikePost   LikeKind = "post"
	LikeReview LikeKind = "review"
)

type likeTable struct {
	likes   string
	column  string
	targets string
	event   events.Type
	newLike func(userID, targetID uuid.UUID) interface{}
	model   func() interface{}
}

var likeTables = map[LikeKind]likeTable{
	LikePost: {
		likes:   "post_likes",
		column:  "post_id",
		targets: "posts",
		event:   events.PostLike,
		newLike: func(u, t uuid.UUID) interface{} { return &models.PostLike{UserID: u, PostID: t} },
		model:   func() interface{} { return &models.PostLike{} },
	},
	LikeReview: {
		likes:   "review_likes",
		column:  "review_id",
		targets: "reviews",
		event:   events.ReviewLike,
		newLike: func(u, t uuid.UUID) interface{} { return &models.ReviewLike{UserID: u, ReviewID: t} },
		model:   func() interface{} { return &models.ReviewLike{} },
	},
}

func ParseLikeKind(s string) (LikeKind, error) {
	k := LikeKind(s)
	if _, ok := likeTables[k]; !ok {
		return "", ErrUnknownKind
	}
	return k, nil
}

type LikeService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewLikeService(db *gorm.DB, publisher events.Publisher) *LikeService {
	return &LikeService{db: db, publisher: publisher}
}

type Hydration struct {
	Liked  map[uuid.UUID]bool
	Counts map[uuid.UUID]dto.Counts
}

type countRow struct {
	ID    uuid.UUID
	Total int64
}

// Hydrate answers "which of these did the viewer like, and how many likes and
// comments does each have" with one grouped query per kind of data.
func (s *LikeService) Hydrate(ctx context.Context, kind LikeKind, viewerID *uuid.UUID, ids []uuid.UUID) (*Hydration, error) {
	t, ok := likeTables[kind]
	if !ok {
		return nil, ErrUnknownKind
	}

	h := &Hydration{
		Liked:  make(map[uuid.UUID]bool),
		Counts: make(map[uuid.UUID]dto.Counts),
	}
	if len(ids) == 0 {
		return h, nil
	}

	var (
		liked    []uuid.UUID
		likes    []countRow
		comments []countRow
	)
	g, gctx := errgroup.WithContext(ctx)

	if viewerID != nil {
		g.Go(func() error {
			return s.db.WithContext(gctx).Table(t.likes).
				Where("user_id = ? AND "+t.column+" IN ?", *viewerID, ids).
				Pluck(t.column, &liked).Error
		})
	}
	g.Go(func() error {
		return s.db.WithContext(gctx).Table(t.likes).
			Select(t.column+" AS id, COUNT(*) AS total").
			Where(t.column+" IN ?", ids).
			Group(t.column).
			Scan(&likes).Error
	})
	if kind == LikePost {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(&models.Comment{}).
				Select("post_id AS id, COUNT(*) AS total").
				Where("post_id IN ?", ids).
				Group("post_id").
				Scan(&comments).Error
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to hydrate %s likes: %w", kind, err)
	}

	for _, id := range liked {
		h.Liked[id] = true
	}
	for _, id := range ids {
		h.Counts[id] = dto.Counts{}
	}
	for _, r := range likes {
		c := h.Counts[r.ID]
		c.Likes = r.Total
		h.Counts[r.ID] = c
	}
	for _, r := range comments {
		c := h.Counts[r.ID]
		c.Comments = r.Total
		h.Counts[r.ID] = c
	}
	return h, nil
}

type ToggleResult struct {
	Liked     bool
	LikeCount int64
}

// Toggle removes the viewer's like if present, otherwise adds it. A duplicate
// insert means a concurrent request already liked it. The count is re-read and
// written back to the denormalized column afterwards.
func (s *LikeService) Toggle(ctx context.Context, kind LikeKind, userID, targetID uuid.UUID) (*ToggleResult, error) {
	t, ok := likeTables[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	db := s.db.WithContext(ctx)

	var owner struct{ UserID uuid.UUID }
	if err := db.Table(t.targets).Select("user_id").Where("id = ?", targetID).Take(&owner).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrTargetNotFound
		}
		return nil, fmt.Errorf("failed to load %s: %w", kind, err)
	}

	res := db.Where("user_id = ? AND "+t.column+" = ?", userID, targetID).Delete(t.model())
	if res.Error != nil {
		return nil, fmt.Errorf("failed to unlike: %w", res.Error)
	}

	result := &ToggleResult{}
	created := false
	if res.RowsAffected == 0 {
		result.Liked = true
		if err := db.Create(t.newLike(userID, targetID)).Error; err != nil {
			if !database.IsUniqueViolation(err) {
				return nil, fmt.Errorf("failed to like: %w", err)
			}
		} else {
			created = true
		}
	}

	count, err := s.syncCount(ctx, t, targetID)
	if err != nil {
		return nil, err
	}
	result.LikeCount = count

	if created {
		publish(ctx, s.publisher, events.Event{Type: t.event, ActorID: userID, RecipientID: owner.UserID, TargetID: &targetID})
	}
	return result, nil
}

func (s *LikeService) syncCount(ctx context.Context, t likeTable, targetID uuid.UUID) (int64, error) {
	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Table(t.likes).Where(t.column+" = ?", targetID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	if err := db.Table(t.targets).Where("id = ?", targetID).Update("like_count", count).Error; err != nil {
		return 0, fmt.Errorf("failed to store like count: %w", err)
	}
	return count, nil
}
