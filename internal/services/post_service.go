package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/events"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MaxPostBody    = 2000
	MaxPostMedia   = 4
	MaxPostTags    = 10
	MaxTagLength   = 32
	MaxCommentBody = 1000
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrForbidden       = errors.New("you can only delete your own content")
	ErrEmptyPost       = errors.New("post needs text or media")
	ErrPostTooLong     = fmt.Errorf("post body must be at most %d characters", MaxPostBody)
	ErrTooManyMedia    = fmt.Errorf("a post can have at most %d attachments", MaxPostMedia)
	ErrTooManyTags     = fmt.Errorf("a post can have at most %d tags", MaxPostTags)
	ErrInvalidMediaURL = errors.New("media urls must be http(s)")
	ErrEmptyComment    = errors.New("comment cannot be empty")
	ErrCommentTooLong  = fmt.Errorf("comment must be at most %d characters", MaxCommentBody)
)

type PostService struct {
	db         *gorm.DB
	games      *GameService
	rel        *RelationshipService
	moderation *ModerationService
	publisher  events.Publisher
}

func NewPostService(db *gorm.DB, games *GameService, rel *RelationshipService, moderation *ModerationService, publisher events.Publisher) *PostService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &PostService{db: db, games: games, rel: rel, moderation: moderation, publisher: publisher}
}

// NormalizeTags lowercases, strips a leading '#', drops empties and
// duplicates, and keeps first-seen order.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "#")))
		if utf8.RuneCountInString(t) > MaxTagLength {
			t = string([]rune(t)[:MaxTagLength])
		}
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxPostTags {
		return nil, ErrTooManyTags
	}
	return out, nil
}

func (s *PostService) Create(ctx context.Context, userID uuid.UUID, req *dto.CreatePostRequest) (*dto.FeedItem, error) {
	body := strings.TrimSpace(req.Body)
	if utf8.RuneCountInString(body) > MaxPostBody {
		return nil, ErrPostTooLong
	}
	if len(req.MediaURLs) > MaxPostMedia {
		return nil, ErrTooManyMedia
	}
	for _, u := range req.MediaURLs {
		if !isHTTPURL(u) {
			return nil, ErrInvalidMediaURL
		}
	}
	if body == "" && len(req.MediaURLs) == 0 {
		return nil, ErrEmptyPost
	}
	tags, err := NormalizeTags(req.Tags)
	if err != nil {
		return nil, err
	}
	if err := s.moderation.Check(body); err != nil {
		return nil, err
	}

	author, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		UserID:    userID,
		Body:      body,
		Tags:      tags,
		MediaURLs: req.MediaURLs,
		MediaKind: models.MediaKindOf(req.MediaURLs),
	}
	var game *models.Game
	if req.GameIGDBID != nil {
		if game, err = s.games.Resolve(ctx, *req.GameIGDBID); err != nil {
			return nil, err
		}
		post.GameID = &game.ID
	}

	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	item := postItem(&post, author, game)
	return &item, nil
}

func (s *PostService) Get(ctx context.Context, viewerID *uuid.UUID, postID uuid.UUID) (*dto.FeedItem, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Preload("User").Where("id = ?", postID).First(&post).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if viewerID != nil {
		blocked, err := s.rel.BlockedEitherWay(ctx, *viewerID)
		if err != nil {
			return nil, err
		}
		if _, ok := blocked[post.UserID]; ok {
			return nil, ErrPostNotFound
		}
	}

	var game *models.Game
	if post.GameID != nil {
		var g models.Game
		if err := s.db.WithContext(ctx).Where("id = ?", *post.GameID).First(&g).Error; err == nil {
			game = &g
		}
	}
	item := postItem(&post, &post.User, game)
	if viewerID != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.PostLike{}).
			Where("user_id = ? AND post_id = ?", *viewerID, postID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to load like state: %w", err)
		}
		item.LikedByViewer = n > 0
	}
	return &item, nil
}

func (s *PostService) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	var post models.Post
	if err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", postID).First(&post).Error; err != nil {
		if database.IsNotFound(err) {
			return ErrPostNotFound
		}
		return fmt.Errorf("failed to load post: %w", err)
	}
	if post.UserID != userID {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePostTree(tx, postID)
	})
}

func deletePostTree(tx *gorm.DB, postID uuid.UUID) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostLike{}).Error; err != nil {
		return fmt.Errorf("failed to delete post likes: %w", err)
	}
	if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	if err := tx.Where("id = ?", postID).Delete(&models.Post{}).Error; err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}

func (s *PostService) AddComment(ctx context.Context, userID, postID uuid.UUID, body string) (*dto.CommentView, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyComment
	}
	if utf8.RuneCountInString(body) > MaxCommentBody {
		return nil, ErrCommentTooLong
	}
	if err := s.moderation.Check(body); err != nil {
		return nil, err
	}

	var post models.Post
	if err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", postID).First(&post).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	blocked, err := s.rel.BlockedEitherWay(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := blocked[post.UserID]; ok {
		return nil, ErrBlocked
	}

	author, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	comment := models.Comment{PostID: postID, UserID: userID, Body: body}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	if err := syncCommentCount(s.db.WithContext(ctx), postID); err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, events.Event{Type: events.Comment, ActorID: userID, RecipientID: post.UserID, TargetID: &postID})

	view := commentView(&comment, author)
	return &view, nil
}

func (s *PostService) ListComments(ctx context.Context, postID uuid.UUID, cursor *dto.Cursor, limit int) (*dto.CommentPage, error) {
	limit = ClampLimit(limit)
	var comments []models.Comment
	err := s.db.WithContext(ctx).Preload("User").
		Where("post_id = ?", postID).
		Scopes(Before(cursor), NewestFirst).
		Limit(limit + 1).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	page := &dto.CommentPage{Items: make([]dto.CommentView, 0, len(comments))}
	if len(comments) > limit {
		comments = comments[:limit]
		page.HasMore = true
	}
	for i := range comments {
		page.Items = append(page.Items, commentView(&comments[i], &comments[i].User))
	}
	if page.HasMore {
		last := comments[len(comments)-1]
		page.NextCursor = &dto.Cursor{ID: last.ID, CreatedAt: last.CreatedAt}
		page.NextToken = page.NextCursor.Token()
	}
	return page, nil
}

// DeleteComment lets the comment author or the post owner remove a comment.
func (s *PostService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	var comment models.Comment
	if err := s.db.WithContext(ctx).Where("id = ?", commentID).First(&comment).Error; err != nil {
		if database.IsNotFound(err) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("failed to load comment: %w", err)
	}
	if comment.UserID != userID {
		var owner struct{ UserID uuid.UUID }
		if err := s.db.WithContext(ctx).Model(&models.Post{}).Select("user_id").
			Where("id = ?", comment.PostID).Take(&owner).Error; err != nil || owner.UserID != userID {
			return ErrForbidden
		}
	}
	return deleteComment(s.db.WithContext(ctx), commentID)
}

func deleteComment(tx *gorm.DB, commentID uuid.UUID) error {
	var comment models.Comment
	if err := tx.Select("id", "post_id").Where("id = ?", commentID).First(&comment).Error; err != nil {
		if database.IsNotFound(err) {
			return ErrCommentNotFound
		}
		return err
	}
	if err := tx.Delete(&models.Comment{}, "id = ?", commentID).Error; err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return syncCommentCount(tx, comment.PostID)
}

func syncCommentCount(db *gorm.DB, postID uuid.UUID) error {
	var count int64
	if err := db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count comments: %w", err)
	}
	if err := db.Model(&models.Post{}).Where("id = ?", postID).Update("comment_count", count).Error; err != nil {
		return fmt.Errorf("failed to store comment count: %w", err)
	}
	return nil
}

func (s *PostService) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func postItem(p *models.Post, author *models.User, game *models.Game) dto.FeedItem {
	item := dto.FeedItem{
		Kind:         dto.FeedKindPost,
		ID:           p.ID,
		CreatedAt:    p.CreatedAt,
		Author:       userSummary(author),
		Body:         p.Body,
		Tags:         p.Tags,
		MediaURLs:    p.MediaURLs,
		MediaKind:    string(p.MediaKind),
		LikeCount:    int64(p.LikeCount),
		CommentCount: int64(p.CommentCount),
	}
	if game != nil {
		gs := gameSummary(game)
		item.Game = &gs
	}
	return item
}

func commentView(c *models.Comment, author *models.User) dto.CommentView {
	return dto.CommentView{
		ID:        c.ID,
		PostID:    c.PostID,
		Author:    userSummary(author),
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
	}
}
