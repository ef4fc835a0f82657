// Package viewer reads who is making a request out of the Fiber context.
package viewer

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionHeader carries the per-tab session id used to keep broadcasts from
// echoing back to the tab that caused them.
const SessionHeader = "X-Session-ID"

// UserID extracts the user UUID from JWT claims in context.
func UserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// OptionalUserID returns nil for anonymous requests.
func OptionalUserID(c *fiber.Ctx) *uuid.UUID {
	id, err := UserID(c)
	if err != nil {
		return nil
	}
	return &id
}

func SessionID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get(SessionHeader)); id != "" {
		return id
	}
	return c.Query("session_id")
}
