package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gamdit/gamebox/internal/broadcast"
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/storage"
	"github.com/gamdit/gamebox/internal/viewer"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errorStatus = map[error]int{
	services.ErrInvalidEmail:       fiber.StatusBadRequest,
	services.ErrInvalidUsername:    fiber.StatusBadRequest,
	services.ErrInvalidDisplayName: fiber.StatusBadRequest,
	services.ErrInvalidAvatarURL:   fiber.StatusBadRequest,
	services.ErrInvalidRating:      fiber.StatusBadRequest,
	services.ErrReviewTooLong:      fiber.StatusBadRequest,
	services.ErrInvalidStatus:      fiber.StatusBadRequest,
	services.ErrEmptyPost:          fiber.StatusBadRequest,
	services.ErrPostTooLong:        fiber.StatusBadRequest,
	services.ErrTooManyMedia:       fiber.StatusBadRequest,
	services.ErrTooManyTags:        fiber.StatusBadRequest,
	services.ErrInvalidMediaURL:    fiber.StatusBadRequest,
	services.ErrEmptyComment:       fiber.StatusBadRequest,
	services.ErrCommentTooLong:     fiber.StatusBadRequest,
	services.ErrUnknownKind:        fiber.StatusBadRequest,
	services.ErrSelfBlock:          fiber.StatusBadRequest,
	services.ErrSelfMute:           fiber.StatusBadRequest,
	services.ErrSelfFollow:         fiber.StatusBadRequest,
	services.ErrUnsupportedMedia:   fiber.StatusBadRequest,
	services.ErrUnsupportedImage:   fiber.StatusBadRequest,
	services.ErrEmptyUpload:        fiber.StatusBadRequest,
	services.ErrInvalidContentType: fiber.StatusBadRequest,
	services.ErrInvalidReportState: fiber.StatusBadRequest,
	services.ErrReasonRequired:     fiber.StatusBadRequest,
	dto.ErrInvalidCursor:           fiber.StatusBadRequest,

	services.ErrInvalidMagicLink: fiber.StatusUnauthorized,
	services.ErrInvalidToken:     fiber.StatusUnauthorized,

	services.ErrForbidden: fiber.StatusForbidden,
	services.ErrBlocked:   fiber.StatusForbidden,

	services.ErrUserNotFound:    fiber.StatusNotFound,
	services.ErrGameNotFound:    fiber.StatusNotFound,
	services.ErrPostNotFound:    fiber.StatusNotFound,
	services.ErrCommentNotFound: fiber.StatusNotFound,
	services.ErrReviewNotFound:  fiber.StatusNotFound,
	services.ErrTargetNotFound:  fiber.StatusNotFound,
	services.ErrReportNotFound:  fiber.StatusNotFound,

	services.ErrUsernameTaken: fiber.StatusConflict,
	services.ErrMediaTooLarge: fiber.StatusRequestEntityTooLarge,

	services.ErrIGDBDisabled: fiber.StatusServiceUnavailable,
	storage.ErrDisabled:      fiber.StatusServiceUnavailable,
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: message})
}

// serviceError maps known service errors to 4xx responses with their own
// message. Anything else is logged and answered with a generic 500 carrying
// fallback, so internal details never reach the client.
func serviceError(c *fiber.Ctx, err error, fallback string) error {
	var rejected *services.ContentRejectedError
	if errors.As(err, &rejected) {
		return errorJSON(c, fiber.StatusBadRequest, rejected.Error())
	}
	for target, status := range errorStatus {
		if errors.Is(err, target) {
			return errorJSON(c, status, target.Error())
		}
	}

	slog.Error(fallback, "path", c.Path(), "error", err)
	if hub := sentryfiber.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
	return errorJSON(c, fiber.StatusInternalServerError, fallback)
}

func unauthorized(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusUnauthorized, "Unauthorized")
}

func badBody(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
}

// The param helpers return *fiber.Error so handlers can hand them straight
// back to ErrorHandler.
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "Invalid "+name)
	}
	return id, nil
}

func paramIGDBID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("igdb_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid igdb_id")
	}
	return id, nil
}

// ErrorHandler renders errors that escape a handler. Client errors keep their
// message; server errors are logged and replaced with a generic one.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}
	return errorJSON(c, code, message)
}

// Announcer tells a user's other sessions about a change that has committed.
type Announcer struct {
	bus broadcast.Bus
}

func NewAnnouncer(bus broadcast.Bus) *Announcer {
	return &Announcer{bus: bus}
}

// Announce is best-effort; the mutation already succeeded, so a lost message
// only delays convergence until the other sessions refetch.
func (a *Announcer) Announce(c *fiber.Ctx, userID uuid.UUID, action broadcast.Action, target string, state bool, count *int64) {
	if a == nil || a.bus == nil {
		return
	}
	msg := broadcast.Message{
		UserID:   userID,
		Origin:   viewer.SessionID(c),
		Action:   action,
		TargetID: target,
		State:    state,
		Count:    count,
	}
	if err := a.bus.Publish(context.WithoutCancel(c.UserContext()), msg); err != nil {
		slog.Warn("broadcast failed", "action", string(action), "error", err)
	}
}

// pageParams reads ?cursor=<token>&limit=n.
func pageParams(c *fiber.Ctx) (*dto.Cursor, int, error) {
	cursor, err := dto.ParseCursor(c.Query("cursor"))
	if err != nil {
		return nil, 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return cursor, c.QueryInt("limit", 0), nil
}
