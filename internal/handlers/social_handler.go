package handlers

import (
	"context"
	"log/slog"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SocialHandler struct {
	relationships *services.RelationshipService
	announcer     *Announcer
}

func NewSocialHandler(relationships *services.RelationshipService, announcer *Announcer) *SocialHandler {
	return &SocialHandler{relationships: relationships, announcer: announcer}
}

// pair reads the signed-in viewer and the :id target.
func pair(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	viewerID, err := viewer.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, fiber.ErrUnauthorized
	}
	targetID, err := paramUUID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return viewerID, targetID, nil
}

// Follow always answers 200 with {ok, reason}; self-follows and blocks are
// reported in the body rather than as errors.
func (h *SocialHandler) Follow(c *fiber.Ctx) error {
	viewerID, targetID, err := pair(c)
	if err != nil {
		return err
	}

	resp, err := h.relationships.Follow(c.UserContext(), viewerID, targetID)
	if err != nil {
		return serviceError(c, err, "Failed to follow user")
	}
	if !resp.OK {
		metrics.FollowChanges.WithLabelValues(resp.Reason).Inc()
		return c.JSON(resp)
	}
	metrics.FollowChanges.WithLabelValues("followed").Inc()
	h.announcer.Announce(c, viewerID, broadcast.Follow, targetID.String(), true, nil)
	return c.JSON(resp)
}

func (h *SocialHandler) Unfollow(c *fiber.Ctx) error {
	return h.toggle(c, h.relationships.Unfollow, broadcast.Follow, false, "Failed to unfollow user")
}

func (h *SocialHandler) Block(c *fiber.Ctx) error {
	return h.toggle(c, h.relationships.Block, broadcast.Block, true, "Failed to block user")
}

func (h *SocialHandler) Unblock(c *fiber.Ctx) error {
	return h.toggle(c, h.relationships.Unblock, broadcast.Block, false, "Failed to unblock user")
}

func (h *SocialHandler) Mute(c *fiber.Ctx) error {
	return h.toggle(c, h.relationships.Mute, broadcast.Mute, true, "Failed to mute user")
}

func (h *SocialHandler) Unmute(c *fiber.Ctx) error {
	return h.toggle(c, h.relationships.Unmute, broadcast.Mute, false, "Failed to unmute user")
}

type relationshipOp func(ctx context.Context, viewerID, targetID uuid.UUID) error

func (h *SocialHandler) toggle(c *fiber.Ctx, op relationshipOp, action broadcast.Action, state bool, fallback string) error {
	viewerID, targetID, err := pair(c)
	if err != nil {
		return err
	}
	if err := op(c.UserContext(), viewerID, targetID); err != nil {
		return serviceError(c, err, fallback)
	}
	if action == broadcast.Follow {
		metrics.FollowChanges.WithLabelValues("unfollowed").Inc()
	}
	h.announcer.Announce(c, viewerID, action, targetID.String(), state, nil)
	return c.JSON(dto.ToggleResponse{OK: true, State: state})
}

func (h *SocialHandler) Relationship(c *fiber.Ctx) error {
	viewerID, targetID, err := pair(c)
	if err != nil {
		return err
	}
	state, err := h.relationships.State(c.UserContext(), viewerID, targetID)
	if err != nil {
		return serviceError(c, err, "Failed to load relationship")
	}
	return c.JSON(state)
}

// FollowingIDs is fail-soft: on error it logs and returns an empty list.
func (h *SocialHandler) FollowingIDs(c *fiber.Ctx) error {
	viewerID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ids, err := h.relationships.FollowingIDs(c.UserContext(), viewerID)
	if err != nil {
		slog.Error("following ids failed", "user_id", viewerID, "error", err)
		metrics.Degraded.WithLabelValues("following_ids").Inc()
		ids = []uuid.UUID{}
	}
	return c.JSON(fiber.Map{"data": ids})
}
