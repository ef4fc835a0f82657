package handlers

import (
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gofiber/fiber/v2"
)

// JobHandler runs maintenance jobs on demand. Routes sit behind AdminOnly.
type JobHandler struct {
	backfill *services.BackfillService
	games    *services.GameService
}

func NewJobHandler(backfill *services.BackfillService, games *services.GameService) *JobHandler {
	return &JobHandler{backfill: backfill, games: games}
}

func jobLimit(c *fiber.Ctx) int {
	var req dto.JobRequest
	if len(c.Body()) > 0 {
		_ = c.BodyParser(&req)
	}
	if req.Limit == 0 {
		req.Limit = c.QueryInt("limit", 0)
	}
	return req.Limit
}

func (h *JobHandler) LinkParents(c *fiber.Ctx) error {
	res, err := h.backfill.LinkParents(c.UserContext(), jobLimit(c))
	if err != nil {
		return serviceError(c, err, "Failed to link parent games")
	}
	return c.JSON(res)
}

func (h *JobHandler) EnrichSummaries(c *fiber.Ctx) error {
	res, err := h.backfill.EnrichSummaries(c.UserContext(), jobLimit(c))
	if err != nil {
		return serviceError(c, err, "Failed to enrich summaries")
	}
	return c.JSON(res)
}

func (h *JobHandler) RebuildIndex(c *fiber.Ctx) error {
	n, err := h.games.RebuildIndex(c.UserContext())
	if err != nil {
		return serviceError(c, err, "Failed to rebuild search index")
	}
	return c.JSON(dto.JobResult{Processed: n, Updated: n})
}
