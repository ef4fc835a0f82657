package handlers

import (
	"log/slog"
	"strings"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/metrics"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const (
	searchAll   = "all"
	searchGames = "games"
	searchUsers = "users"
)

type GameHandler struct {
	games   *services.GameService
	users   *services.UserService
	reviews *services.ReviewService
	library *services.LibraryService
}

func NewGameHandler(games *services.GameService, users *services.UserService, reviews *services.ReviewService, library *services.LibraryService) *GameHandler {
	return &GameHandler{games: games, users: users, reviews: reviews, library: library}
}

// Browse degrades to an empty section on error.
func (h *GameHandler) Browse(c *fiber.Ctx) error {
	section := services.NormalizeSection(c.Query("section"))
	res, err := h.games.Browse(c.UserContext(), section, c.QueryInt("limit", 0))
	if err != nil {
		slog.Error("browse degraded", "section", section, "error", err)
		metrics.Degraded.WithLabelValues("browse").Inc()
		return c.JSON(dto.BrowseResponse{Section: section, Games: []dto.GameSummary{}})
	}
	return c.JSON(res)
}

// Search answers {data:{games, users}}. Either half failing leaves it empty.
func (h *GameHandler) Search(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	kind := c.Query("type", searchAll)
	limit := c.QueryInt("limit", 0)
	res := dto.SearchResponse{Games: []dto.GameSummary{}, Users: []dto.UserSummary{}}
	if q == "" {
		return c.JSON(fiber.Map{"data": res})
	}

	var g errgroup.Group
	if kind == searchAll || kind == searchGames {
		g.Go(func() error {
			games, err := h.games.SearchGames(c.UserContext(), q, limit)
			if err != nil {
				slog.Warn("game search degraded", "error", err)
				metrics.Degraded.WithLabelValues("search_games").Inc()
				return nil
			}
			res.Games = games
			return nil
		})
	}
	if kind == searchAll || kind == searchUsers {
		g.Go(func() error {
			users, err := h.users.SearchUsers(c.UserContext(), q, limit)
			if err != nil {
				slog.Warn("user search degraded", "error", err)
				metrics.Degraded.WithLabelValues("search_users").Inc()
				return nil
			}
			res.Users = users
			return nil
		})
	}
	_ = g.Wait()
	return c.JSON(fiber.Map{"data": res})
}

func (h *GameHandler) Detail(c *fiber.Ctx) error {
	igdbID, err := paramIGDBID(c)
	if err != nil {
		return err
	}
	detail, err := h.games.Detail(c.UserContext(), igdbID, viewer.OptionalUserID(c))
	if err != nil {
		return serviceError(c, err, "Failed to load game")
	}
	return c.JSON(detail)
}

func (h *GameHandler) PutReview(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	igdbID, err := paramIGDBID(c)
	if err != nil {
		return err
	}
	var req dto.ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	review, err := h.reviews.Upsert(c.UserContext(), userID, igdbID, &req)
	if err != nil {
		return serviceError(c, err, "Failed to save review")
	}
	return c.JSON(review)
}

func (h *GameHandler) DeleteReview(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	igdbID, err := paramIGDBID(c)
	if err != nil {
		return err
	}
	if err := h.reviews.Delete(c.UserContext(), userID, igdbID); err != nil {
		return serviceError(c, err, "Failed to delete review")
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *GameHandler) Reviews(c *fiber.Ctx) error {
	igdbID, err := paramIGDBID(c)
	if err != nil {
		return err
	}
	cursor, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	page, err := h.reviews.ListForGame(c.UserContext(), viewer.OptionalUserID(c), igdbID, cursor, limit)
	if err != nil {
		return serviceError(c, err, "Failed to load reviews")
	}
	return c.JSON(page)
}

func (h *GameHandler) PutLibrary(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	igdbID, err := paramIGDBID(c)
	if err != nil {
		return err
	}
	var req dto.LibraryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	entry, err := h.library.Set(c.UserContext(), userID, igdbID, req.Status)
	if err != nil {
		return serviceError(c, err, "Failed to update library")
	}
	return c.JSON(entry)
}

func (h *GameHandler) DeleteLibrary(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	igdbID, err := paramIGDBID(c)
	if err != nil {
		return err
	}
	if err := h.library.Remove(c.UserContext(), userID, igdbID); err != nil {
		return serviceError(c, err, "Failed to update library")
	}
	return c.JSON(fiber.Map{"ok": true})
}
