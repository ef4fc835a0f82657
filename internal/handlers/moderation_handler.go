package handlers

import (
	"strconv"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
}

func NewModerationHandler(moderationService *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService}
}

func (h *ModerationHandler) CreateReport(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	report, err := h.moderationService.CreateReport(c.UserContext(), userID, &req)
	if err != nil {
		return serviceError(c, err, "Failed to file report")
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	status := c.Query("status", "")
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	reports, total, err := h.moderationService.ListReports(c.UserContext(), status, limit, offset)
	if err != nil {
		return serviceError(c, err, "Failed to fetch reports")
	}

	return c.JSON(fiber.Map{
		"reports": reports,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *ModerationHandler) ActionReport(c *fiber.Ctx) error {
	reportID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}

	var req dto.ActionReportRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.moderationService.ActionReport(c.UserContext(), reportID, &req); err != nil {
		return serviceError(c, err, "Failed to update report")
	}

	return c.JSON(fiber.Map{"message": "Report updated successfully"})
}
