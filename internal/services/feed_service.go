package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	TabForYou    = "for-you"
	TabFollowing = "following"

	FilterAll     = "all"
	FilterClips   = "clips"
	FilterReviews = "reviews"
	FilterScreens = "screens"
)

type FeedQuery struct {
	ViewerID *uuid.UUID
	// AuthorID restricts the feed to one profile.
	AuthorID *uuid.UUID
	Tab      string
	Filter   string
	Cursor   *dto.Cursor
	Limit    int
}

// Normalize applies defaults: unknown tab and filter values fall back to
// for-you and all.
func (q FeedQuery) Normalize() FeedQuery {
	switch q.Tab {
	case TabForYou, TabFollowing:
	default:
		q.Tab = TabForYou
	}
	switch q.Filter {
	case FilterAll, FilterClips, FilterReviews, FilterScreens:
	default:
		q.Filter = FilterAll
	}
	q.Limit = ClampLimit(q.Limit)
	return q
}

type FeedService struct {
	db            *gorm.DB
	relationships *RelationshipService
	likes         *LikeService
}

func NewFeedService(db *gorm.DB, relationships *RelationshipService, likes *LikeService) *FeedService {
	return &FeedService{db: db, relationships: relationships, likes: likes}
}

type feedRow struct {
	kind      string
	id        uuid.UUID
	createdAt time.Time
	post      *models.Post
	review    *models.Review
}

// newer orders rows by (created_at DESC, id DESC), matching the SQL.
func newer(a, b feedRow) bool {
	if !a.createdAt.Equal(b.createdAt) {
		return a.createdAt.After(b.createdAt)
	}
	return a.id.String() > b.id.String()
}

func (s *FeedService) Fetch(ctx context.Context, q FeedQuery) (*dto.FeedResponse, error) {
	q = q.Normalize()
	empty := dto.EmptyFeed()

	authors, excluded, ok, err := s.audience(ctx, q)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &empty, nil
	}

	var (
		posts   []models.Post
		reviews []models.Review
	)
	g, gctx := errgroup.WithContext(ctx)
	if q.Filter != FilterReviews {
		g.Go(func() error {
			tx := s.db.WithContext(gctx).Model(&models.Post{}).Scopes(byAuthors(authors, excluded), Before(q.Cursor), NewestFirst)
			switch q.Filter {
			case FilterClips:
				tx = tx.Where("media_kind = ?", models.MediaVideo)
			case FilterScreens:
				tx = tx.Where("media_kind = ?", models.MediaImage)
			}
			return tx.Limit(q.Limit + 1).Find(&posts).Error
		})
	}
	if q.Filter == FilterAll || q.Filter == FilterReviews {
		g.Go(func() error {
			return s.db.WithContext(gctx).Model(&models.Review{}).
				Scopes(byAuthors(authors, excluded), Before(q.Cursor), NewestFirst).
				Limit(q.Limit + 1).Find(&reviews).Error
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	rows := make([]feedRow, 0, len(posts)+len(reviews))
	for i := range posts {
		p := &posts[i]
		rows = append(rows, feedRow{kind: dto.FeedKindPost, id: p.ID, createdAt: p.CreatedAt, post: p})
	}
	for i := range reviews {
		r := &reviews[i]
		rows = append(rows, feedRow{kind: dto.FeedKindReview, id: r.ID, createdAt: r.CreatedAt, review: r})
	}
	sort.Slice(rows, func(i, j int) bool { return newer(rows[i], rows[j]) })

	page := dto.FeedResponse{Items: []dto.FeedItem{}}
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
		page.HasMore = true
	}
	if page.HasMore {
		last := rows[len(rows)-1]
		page.NextCursor = &dto.Cursor{ID: last.id, CreatedAt: last.createdAt.UTC()}
		page.NextToken = page.NextCursor.Token()
	}

	items, err := s.hydrate(ctx, q.ViewerID, rows)
	if err != nil {
		return nil, err
	}
	page.Items = items
	return &page, nil
}

// audience resolves which authors may appear. A nil author list means
// anyone; ok=false means the page is empty by construction.
func (s *FeedService) audience(ctx context.Context, q FeedQuery) (authors, excluded []uuid.UUID, ok bool, err error) {
	if q.AuthorID != nil {
		authors = []uuid.UUID{*q.AuthorID}
	} else if q.Tab == TabFollowing {
		if q.ViewerID == nil {
			return nil, nil, false, nil
		}
		following, err := s.relationships.FollowingIDs(ctx, *q.ViewerID)
		if err != nil {
			return nil, nil, false, err
		}
		authors = append(following, *q.ViewerID)
	}

	if q.ViewerID == nil {
		return authors, nil, true, nil
	}

	muted, err := s.relationships.MutedIDs(ctx, *q.ViewerID)
	if err != nil {
		return nil, nil, false, err
	}
	blocked, err := s.relationships.BlockedEitherWay(ctx, *q.ViewerID)
	if err != nil {
		return nil, nil, false, err
	}
	excluded = muted
	for id := range blocked {
		excluded = append(excluded, id)
	}
	return authors, excluded, true, nil
}

func byAuthors(authors, excluded []uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if authors != nil {
			db = db.Where("user_id IN ?", authors)
		}
		if len(excluded) > 0 {
			db = db.Where("user_id NOT IN ?", excluded)
		}
		return db
	}
}

func (s *FeedService) hydrate(ctx context.Context, viewerID *uuid.UUID, rows []feedRow) ([]dto.FeedItem, error) {
	if len(rows) == 0 {
		return []dto.FeedItem{}, nil
	}

	var postIDs, reviewIDs, userIDs, gameIDs []uuid.UUID
	for _, r := range rows {
		if r.post != nil {
			postIDs = append(postIDs, r.id)
			userIDs = append(userIDs, r.post.UserID)
			if r.post.GameID != nil {
				gameIDs = append(gameIDs, *r.post.GameID)
			}
		} else {
			reviewIDs = append(reviewIDs, r.id)
			userIDs = append(userIDs, r.review.UserID)
			gameIDs = append(gameIDs, r.review.GameID)
		}
	}

	var (
		users       []models.User
		games       []models.Game
		postLikes   *Hydration
		reviewLikes *Hydration
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).Where("id IN ?", userIDs).Find(&users).Error
	})
	if len(gameIDs) > 0 {
		g.Go(func() error {
			return s.db.WithContext(gctx).Where("id IN ?", gameIDs).Find(&games).Error
		})
	}
	g.Go(func() (err error) {
		postLikes, err = s.likes.Hydrate(gctx, LikePost, viewerID, postIDs)
		return err
	})
	g.Go(func() (err error) {
		reviewLikes, err = s.likes.Hydrate(gctx, LikeReview, viewerID, reviewIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to hydrate feed: %w", err)
	}

	userByID := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		userByID[users[i].ID] = &users[i]
	}
	gameByID := make(map[uuid.UUID]*models.Game, len(games))
	for i := range games {
		gameByID[games[i].ID] = &games[i]
	}

	items := make([]dto.FeedItem, 0, len(rows))
	for _, r := range rows {
		item := dto.FeedItem{Kind: r.kind, ID: r.id, CreatedAt: r.createdAt.UTC()}
		var authorID uuid.UUID
		var gameID *uuid.UUID
		var h *Hydration

		if r.post != nil {
			p := r.post
			authorID, gameID, h = p.UserID, p.GameID, postLikes
			item.Body = p.Body
			item.Tags = p.Tags
			item.MediaURLs = p.MediaURLs
			item.MediaKind = string(p.MediaKind)
		} else {
			rv := r.review
			authorID, gameID, h = rv.UserID, &rv.GameID, reviewLikes
			rating, stars := rv.Rating, rv.Stars()
			item.Body = rv.Body
			item.Rating = &rating
			item.Stars = &stars
		}

		if u, ok := userByID[authorID]; ok {
			item.Author = userSummary(u)
		} else {
			item.Author = dto.UserSummary{ID: authorID}
		}
		if gameID != nil {
			if game, ok := gameByID[*gameID]; ok {
				gs := gameSummary(game)
				item.Game = &gs
			}
		}
		counts := h.Counts[r.id]
		item.LikeCount = counts.Likes
		item.CommentCount = counts.Comments
		item.LikedByViewer = h.Liked[r.id]
		items = append(items, item)
	}
	return items, nil
}
