package handlers

import (
	"log/slog"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxHydrateIDs = 100

type LikeHandler struct {
	likes     *services.LikeService
	announcer *Announcer
}

func NewLikeHandler(likes *services.LikeService, announcer *Announcer) *LikeHandler {
	return &LikeHandler{likes: likes, announcer: announcer}
}

func (h *LikeHandler) TogglePost(c *fiber.Ctx) error {
	return h.toggle(c, services.LikePost, broadcast.LikePost)
}

func (h *LikeHandler) ToggleReview(c *fiber.Ctx) error {
	return h.toggle(c, services.LikeReview, broadcast.LikeReview)
}

func (h *LikeHandler) toggle(c *fiber.Ctx, kind services.LikeKind, action broadcast.Action) error {
	userID, targetID, err := pair(c)
	if err != nil {
		return err
	}

	res, err := h.likes.Toggle(c.UserContext(), kind, userID, targetID)
	if err != nil {
		return serviceError(c, err, "Failed to update like")
	}
	metrics.LikeToggles.WithLabelValues(string(kind), metrics.State(res.Liked)).Inc()
	h.announcer.Announce(c, userID, action, targetID.String(), res.Liked, &res.LikeCount)

	return c.JSON(dto.ToggleResponse{OK: true, State: res.Liked, LikeCount: res.LikeCount})
}

// Hydrate returns liked state and counts for up to 100 ids. Anonymous viewers
// get counts only.
func (h *LikeHandler) Hydrate(c *fiber.Ctx) error {
	var req dto.HydrateRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	kind, err := services.ParseLikeKind(req.Kind)
	if err != nil {
		return serviceError(c, err, "Failed to hydrate")
	}
	if len(req.IDs) > maxHydrateIDs {
		return errorJSON(c, fiber.StatusBadRequest, "Too many ids")
	}

	viewerID := viewer.OptionalUserID(c)
	res, err := h.likes.Hydrate(c.UserContext(), kind, viewerID, req.IDs)
	if err != nil {
		slog.Error("hydrate failed", "kind", kind, "error", err)
		metrics.Degraded.WithLabelValues("hydrate").Inc()
		return c.JSON(dto.HydrateResponse{Liked: map[uuid.UUID]bool{}, Counts: map[uuid.UUID]dto.Counts{}})
	}
	return c.JSON(dto.HydrateResponse{Liked: res.Liked, Counts: res.Counts})
}
