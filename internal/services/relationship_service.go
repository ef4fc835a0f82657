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
	"gorm.io/gorm"
)

var (
	ErrSelfFollow = errors.New("cannot follow yourself")
	ErrBlocked    = errors.New("blocked")
	ErrSelfBlock  = errors.New("cannot block yourself")
	ErrSelfMute   = errors.New("cannot mute yourself")
)

const (
	ReasonSelf    = "self"
	ReasonBlocked = "blocked"
)

type RelationshipService struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewRelationshipService(db *gorm.DB, publisher events.Publisher) *RelationshipService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &RelationshipService{db: db, publisher: publisher}
}

// Follow is rejected (not errored) for self-follows and when a block exists in
// either direction. Following someone twice is a success.
func (s *RelationshipService) Follow(ctx context.Context, viewerID, targetID uuid.UUID) (*dto.FollowResponse, error) {
	if viewerID == targetID {
		return &dto.FollowResponse{OK: false, Reason: ReasonSelf}, nil
	}

	if err := s.ensureUser(ctx, targetID); err != nil {
		return nil, err
	}

	blocked, err := s.BlockedEitherWay(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if _, ok := blocked[targetID]; ok {
		return &dto.FollowResponse{OK: false, Reason: ReasonBlocked}, nil
	}

	follow := models.Follow{FollowerID: viewerID, FolloweeID: targetID}
	if err := s.db.WithContext(ctx).Create(&follow).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return &dto.FollowResponse{OK: true, Following: true}, nil
		}
		return nil, fmt.Errorf("failed to follow: %w", err)
	}

	publish(ctx, s.publisher, events.Event{Type: events.Follow, ActorID: viewerID, RecipientID: targetID})
	return &dto.FollowResponse{OK: true, Following: true}, nil
}

func (s *RelationshipService) Unfollow(ctx context.Context, viewerID, targetID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", viewerID, targetID).
		Delete(&models.Follow{}).Error
}

// Block leaves existing follow rows alone; it only stops new ones.
func (s *RelationshipService) Block(ctx context.Context, viewerID, targetID uuid.UUID) error {
	if viewerID == targetID {
		return ErrSelfBlock
	}
	if err := s.ensureUser(ctx, targetID); err != nil {
		return err
	}

	block := models.Block{BlockerID: viewerID, BlockedID: targetID}
	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil && !database.IsUniqueViolation(err) {
		return fmt.Errorf("failed to block: %w", err)
	}
	return nil
}

func (s *RelationshipService) Unblock(ctx context.Context, viewerID, targetID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", viewerID, targetID).
		Delete(&models.Block{}).Error
}

func (s *RelationshipService) Mute(ctx context.Context, viewerID, targetID uuid.UUID) error {
	if viewerID == targetID {
		return ErrSelfMute
	}
	if err := s.ensureUser(ctx, targetID); err != nil {
		return err
	}

	mute := models.Mute{UserID: viewerID, TargetID: targetID}
	if err := s.db.WithContext(ctx).Create(&mute).Error; err != nil && !database.IsUniqueViolation(err) {
		return fmt.Errorf("failed to mute: %w", err)
	}
	return nil
}

func (s *RelationshipService) Unmute(ctx context.Context, viewerID, targetID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND target_id = ?", viewerID, targetID).
		Delete(&models.Mute{}).Error
}

func (s *RelationshipService) State(ctx context.Context, viewerID, targetID uuid.UUID) (*dto.RelationshipState, error) {
	db := s.db.WithContext(ctx)
	var state dto.RelationshipState

	checks := []struct {
		dst   *bool
		model interface{}
		where string
		a, b  uuid.UUID
	}{
		{&state.Following, &models.Follow{}, "follower_id = ? AND followee_id = ?", viewerID, targetID},
		{&state.FollowedBy, &models.Follow{}, "follower_id = ? AND followee_id = ?", targetID, viewerID},
		{&state.IBlocked, &models.Block{}, "blocker_id = ? AND blocked_id = ?", viewerID, targetID},
		{&state.BlockedBy, &models.Block{}, "blocker_id = ? AND blocked_id = ?", targetID, viewerID},
		{&state.Muted, &models.Mute{}, "user_id = ? AND target_id = ?", viewerID, targetID},
	}
	for _, c := range checks {
		var n int64
		if err := db.Model(c.model).Where(c.where, c.a, c.b).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to load relationship: %w", err)
		}
		*c.dst = n > 0
	}
	return &state, nil
}

func (s *RelationshipService) FollowingIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := s.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", viewerID).
		Order("created_at DESC").
		Pluck("followee_id", &ids).Error
	return ids, err
}

// BlockedEitherWay returns every user the viewer blocked or was blocked by.
func (s *RelationshipService) BlockedEitherWay(ctx context.Context, viewerID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	var blocked, blockers []uuid.UUID
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Block{}).Where("blocker_id = ?", viewerID).Pluck("blocked_id", &blocked).Error; err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}
	if err := db.Model(&models.Block{}).Where("blocked_id = ?", viewerID).Pluck("blocker_id", &blockers).Error; err != nil {
		return nil, fmt.Errorf("failed to load blocks: %w", err)
	}

	set := make(map[uuid.UUID]struct{}, len(blocked)+len(blockers))
	for _, id := range blocked {
		set[id] = struct{}{}
	}
	for _, id := range blockers {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *RelationshipService) MutedIDs(ctx context.Context, viewerID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Mute{}).Where("user_id = ?", viewerID).Pluck("target_id", &ids).Error
	return ids, err
}

func (s *RelationshipService) Counts(ctx context.Context, userID uuid.UUID) (followers, following int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, err
	}
	err = db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&following).Error
	return followers, following, err
}

func (s *RelationshipService) ensureUser(ctx context.Context, id uuid.UUID) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
