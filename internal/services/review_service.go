package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const MaxReviewBody = 5000

var (
	ErrInvalidRating  = fmt.Errorf("rating must be between %d and %d", models.MinRating, models.MaxRating)
	ErrReviewTooLong  = fmt.Errorf("review must be at most %d characters", MaxReviewBody)
	ErrReviewNotFound = errors.New("review not found")
)

type ReviewService struct {
	db         *gorm.DB
	games      *GameService
	likes      *LikeService
	rel        *RelationshipService
	moderation *ModerationService
}

func NewReviewService(db *gorm.DB, games *GameService, likes *LikeService, rel *RelationshipService, moderation *ModerationService) *ReviewService {
	return &ReviewService{db: db, games: games, likes: likes, rel: rel, moderation: moderation}
}

// Upsert writes the viewer's single review of a game, replacing rating and
// body when one already exists.
func (s *ReviewService) Upsert(ctx context.Context, userID uuid.UUID, igdbID int64, req *dto.ReviewRequest) (*dto.ReviewView, error) {
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return nil, ErrInvalidRating
	}
	body := strings.TrimSpace(req.Body)
	if utf8.RuneCountInString(body) > MaxReviewBody {
		return nil, ErrReviewTooLong
	}
	if err := s.moderation.Check(body); err != nil {
		return nil, err
	}

	game, err := s.games.Resolve(ctx, igdbID)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	review := models.Review{UserID: userID, GameID: game.ID, Rating: req.Rating, Body: body}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "game_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"rating": req.Rating, "body": body, "updated_at": time.Now().UTC()}),
	}).Create(&review).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	var stored models.Review
	if err := db.Preload("User").Where("user_id = ? AND game_id = ?", userID, game.ID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to reload review: %w", err)
	}
	view := reviewView(&stored, false)
	return &view, nil
}

func (s *ReviewService) Delete(ctx context.Context, userID uuid.UUID, igdbID int64) error {
	var review models.Review
	err := s.db.WithContext(ctx).
		Joins("JOIN games ON games.id = reviews.game_id").
		Where("reviews.user_id = ? AND games.igdb_id = ?", userID, igdbID).
		First(&review).Error
	if err != nil {
		if database.IsNotFound(err) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("failed to load review: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteReviewTree(tx, review.ID)
	})
}

func deleteReviewTree(tx *gorm.DB, reviewID uuid.UUID) error {
	if err := tx.Where("review_id = ?", reviewID).Delete(&models.ReviewLike{}).Error; err != nil {
		return fmt.Errorf("failed to delete review likes: %w", err)
	}
	if err := tx.Where("id = ?", reviewID).Delete(&models.Review{}).Error; err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

// ListForGame pages through a game's reviews newest first, hiding authors
// the viewer blocked or was blocked by.
func (s *ReviewService) ListForGame(ctx context.Context, viewerID *uuid.UUID, igdbID int64, cursor *dto.Cursor, limit int) (*dto.ReviewPage, error) {
	limit = ClampLimit(limit)
	page := &dto.ReviewPage{Items: []dto.ReviewView{}}

	var game models.Game
	if err := s.db.WithContext(ctx).Where("igdb_id = ?", igdbID).First(&game).Error; err != nil {
		if database.IsNotFound(err) {
			return page, nil
		}
		return nil, fmt.Errorf("failed to load game: %w", err)
	}

	q := s.db.WithContext(ctx).Preload("User").Where("game_id = ?", game.ID)
	if viewerID != nil {
		blocked, err := s.rel.BlockedEitherWay(ctx, *viewerID)
		if err != nil {
			return nil, err
		}
		if len(blocked) > 0 {
			ids := make([]uuid.UUID, 0, len(blocked))
			for id := range blocked {
				ids = append(ids, id)
			}
			q = q.Where("user_id NOT IN ?", ids)
		}
	}

	var reviews []models.Review
	if err := q.Scopes(Before(cursor), NewestFirst).Limit(limit + 1).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	if len(reviews) > limit {
		reviews = reviews[:limit]
		page.HasMore = true
	}

	ids := make([]uuid.UUID, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
	}
	h, err := s.likes.Hydrate(ctx, LikeReview, viewerID, ids)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		v := reviewView(&reviews[i], h.Liked[reviews[i].ID])
		v.LikeCount = h.Counts[reviews[i].ID].Likes
		page.Items = append(page.Items, v)
	}
	if page.HasMore {
		last := reviews[len(reviews)-1]
		page.NextCursor = &dto.Cursor{ID: last.ID, CreatedAt: last.CreatedAt}
		page.NextToken = page.NextCursor.Token()
	}
	return page, nil
}

func reviewView(r *models.Review, liked bool) dto.ReviewView {
	return dto.ReviewView{
		ID:        r.ID,
		Author:    userSummary(&r.User),
		Rating:    r.Rating,
		Stars:     r.Stars(),
		Body:      r.Body,
		LikeCount: int64(r.LikeCount),
		Liked:     liked,
		CreatedAt: r.CreatedAt,
	}
}
