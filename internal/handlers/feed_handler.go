package handlers

import (
	"log/slog"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
)

// FeedHandler never fails a read: store errors degrade to an empty page and
// an unusable cursor restarts from the newest item.
type FeedHandler struct {
	feed  *services.FeedService
	users *services.UserService
}

func NewFeedHandler(feed *services.FeedService, users *services.UserService) *FeedHandler {
	return &FeedHandler{feed: feed, users: users}
}

// Get reads tab, filter, cursor and limit from the query string.
func (h *FeedHandler) Get(c *fiber.Ctx) error {
	q := services.FeedQuery{
		ViewerID: viewer.OptionalUserID(c),
		Tab:      c.Query("tab"),
		Filter:   c.Query("filter"),
		Limit:    c.QueryInt("limit", 0),
	}
	q.Cursor = firstPageOnError(dto.ParseCursor(c.Query("cursor")))
	return h.fetch(c, q)
}

// Post takes the same parameters as a JSON body.
func (h *FeedHandler) Post(c *fiber.Ctx) error {
	var req dto.FeedRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("unreadable feed request, using defaults", "path", c.Path(), "error", err)
		req = dto.FeedRequest{}
	}
	return h.fetch(c, services.FeedQuery{
		ViewerID: viewer.OptionalUserID(c),
		Tab:      req.Tab,
		Filter:   req.Filter,
		Cursor:   firstPageOnError(req.ParseCursor()),
		Limit:    req.Limit,
	})
}

// UserFeed is one profile's posts and reviews.
func (h *FeedHandler) UserFeed(c *fiber.Ctx) error {
	user, err := h.users.Lookup(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.degrade(c, "user_feed", err)
	}
	return h.fetch(c, services.FeedQuery{
		ViewerID: viewer.OptionalUserID(c),
		AuthorID: &user.ID,
		Filter:   c.Query("filter"),
		Cursor:   firstPageOnError(dto.ParseCursor(c.Query("cursor"))),
		Limit:    c.QueryInt("limit", 0),
	})
}

func (h *FeedHandler) fetch(c *fiber.Ctx, q services.FeedQuery) error {
	page, err := h.feed.Fetch(c.UserContext(), q)
	if err != nil {
		return h.degrade(c, "feed", err)
	}
	return c.JSON(page)
}

func firstPageOnError(cursor *dto.Cursor, err error) *dto.Cursor {
	if err != nil {
		slog.Warn("ignoring feed cursor", "error", err)
		return nil
	}
	return cursor
}

func (h *FeedHandler) degrade(c *fiber.Ctx, endpoint string, err error) error {
	slog.Error("feed degraded", "endpoint", endpoint, "path", c.Path(), "error", err)
	metrics.Degraded.WithLabelValues(endpoint).Inc()
	return c.JSON(dto.EmptyFeed())
}
