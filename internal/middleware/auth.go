package middleware

import (
	"strings"

	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func unauthorized(c *fiber.Ctx, _ error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error:   true,
		Message: "Unauthorized: invalid or expired token",
	})
}

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: unauthorized,
	})
}

// RealtimeJWT also accepts ?access_token= because browsers cannot set
// headers on a websocket handshake.
func RealtimeJWT(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		TokenLookup:  "header:Authorization,query:access_token",
		ErrorHandler: unauthorized,
	})
}

// OptionalJWT stores a valid bearer token in Locals("user") the same way
// JWTProtected does, and lets every request through. Public reads use it to
// personalise responses for signed-in viewers.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	key := []byte(cfg.JWTSecret)
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
			return c.Next()
		}
		token, err := jwt.Parse(strings.TrimSpace(auth[7:]), func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err == nil && token.Valid {
			c.Locals("user", token)
		}
		return c.Next()
	}
}
