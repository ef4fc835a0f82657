package handlers

import (
	"errors"
	"log/slog"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// MagicLink answers 200 whether or not the address has an account.
func (h *AuthHandler) MagicLink(c *fiber.Ctx) error {
	var req dto.MagicLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.RequestMagicLink(c.UserContext(), req.Email); err != nil {
		if errors.Is(err, services.ErrInvalidEmail) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		slog.Error("magic link request failed", "error", err)
	}
	return c.JSON(fiber.Map{"message": "If that address can sign in, a link is on its way."})
}

func (h *AuthHandler) Verify(c *fiber.Ctx) error {
	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Token == "" {
		return errorJSON(c, fiber.StatusBadRequest, "Token is required")
	}

	resp, err := h.authService.Verify(c.UserContext(), req.Token)
	if err != nil {
		return serviceError(c, err, "Failed to sign in")
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	resp, err := h.authService.Refresh(c.UserContext(), &req)
	if err != nil {
		return serviceError(c, err, "Internal server error")
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	if err := h.authService.Logout(c.UserContext(), &req); err != nil {
		return serviceError(c, err, "Failed to logout")
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}
