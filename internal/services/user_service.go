package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gamdit/gamebox/internal/database"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUsername    = errors.New("username must be 3-20 characters of a-z, 0-9 or _")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidDisplayName = errors.New("display name must be at most 50 characters")
	ErrInvalidAvatarURL   = errors.New("avatar url must be an http(s) url")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

var reservedUsernames = map[string]bool{
	"admin": true, "api": true, "auth": true, "me": true, "settings": true,
	"search": true, "games": true, "feed": true, "notifications": true,
}

// NormalizeUsername lowercases and validates a requested handle.
func NormalizeUsername(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !usernamePattern.MatchString(name) || reservedUsernames[name] {
		return "", ErrInvalidUsername
	}
	return name, nil
}

type UserService struct {
	db            *gorm.DB
	relationships *RelationshipService
}

func NewUserService(db *gorm.DB, relationships *RelationshipService) *UserService {
	return &UserService{db: db, relationships: relationships}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Lookup accepts either a user id or a username.
func (s *UserService) Lookup(ctx context.Context, ref string) (*models.User, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return s.Get(ctx, id)
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "username = ?", strings.ToLower(ref)).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func (s *UserService) Me(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := userResponse(user)
	return &resp, nil
}

func (s *UserService) SetUsername(ctx context.Context, id uuid.UUID, name string) (*dto.UserResponse, error) {
	name, err := NormalizeUsername(name)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("username", name)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to set username: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.Me(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if len([]rune(name)) > 50 {
			return nil, ErrInvalidDisplayName
		}
		updates["display_name"] = name
	}
	if req.AvatarURL != nil {
		avatar := strings.TrimSpace(*req.AvatarURL)
		if avatar != "" && !isHTTPURL(avatar) {
			return nil, ErrInvalidAvatarURL
		}
		updates["avatar_url"] = avatar
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	return s.Me(ctx, id)
}

func (s *UserService) Profile(ctx context.Context, viewerID *uuid.UUID, ref string) (*dto.ProfileResponse, error) {
	user, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	followers, following, err := s.relationships.Counts(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ProfileResponse{
		UserSummary:    userSummary(user),
		FollowerCount:  followers,
		FollowingCount: following,
	}
	if viewerID != nil && *viewerID != user.ID {
		state, err := s.relationships.State(ctx, *viewerID, user.ID)
		if err != nil {
			return nil, err
		}
		resp.Relationship = state
	}
	return resp, nil
}

// SearchUsers matches usernames and display names case-insensitively,
// ranking username prefix matches first.
func (s *UserService) SearchUsers(ctx context.Context, q string, limit int) ([]dto.UserSummary, error) {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []dto.UserSummary{}
	if q == "" {
		return out, nil
	}
	limit = ClampLimit(limit)
	like := "%" + escapeLike(q) + "%"
	prefix := escapeLike(q) + "%"

	var users []models.User
	err := s.db.WithContext(ctx).
		Where("username IS NOT NULL").
		Where("(LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(display_name) LIKE ? ESCAPE '\\')", like, like).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN LOWER(username) LIKE ? ESCAPE '\\' THEN 0 ELSE 1 END, username",
			Vars:               []interface{}{prefix},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	for i := range users {
		out = append(out, userSummary(&users[i]))
	}
	return out, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" && len(raw) <= 512
}
