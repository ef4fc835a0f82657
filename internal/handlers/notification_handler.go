package handlers

import (
	"log/slog"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	sidebar       *services.SidebarService
}

func NewNotificationHandler(notifications *services.NotificationService, sidebar *services.SidebarService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, sidebar: sidebar}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	cursor, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	page, err := h.notifications.List(c.UserContext(), userID, cursor, limit)
	if err != nil {
		return serviceError(c, err, "Failed to load notifications")
	}
	return c.JSON(page)
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	n, err := h.notifications.UnreadCount(c.UserContext(), userID)
	if err != nil {
		slog.Warn("unread count degraded", "error", err)
		metrics.Degraded.WithLabelValues("unread_count").Inc()
		n = 0
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	n, err := h.notifications.MarkRead(c.UserContext(), userID, &req)
	if err != nil {
		return serviceError(c, err, "Failed to mark notifications read")
	}
	return c.JSON(fiber.Map{"count": n})
}

// Sidebar returns whatever parts loaded; failed parts come back zero-valued.
func (h *NotificationHandler) Sidebar(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	res, err := h.sidebar.Preload(c.UserContext(), userID)
	if err != nil {
		slog.Warn("sidebar degraded", "user_id", userID, "error", err)
		metrics.Degraded.WithLabelValues("sidebar").Inc()
	}
	return c.JSON(res)
}
