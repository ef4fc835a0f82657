package handlers

import (
	"io"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	users   *services.UserService
	library *services.LibraryService
	media   *services.MediaService
}

func NewUserHandler(users *services.UserService, library *services.LibraryService, media *services.MediaService) *UserHandler {
	return &UserHandler{users: users, library: library, media: media}
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	me, err := h.users.Me(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, err, "Failed to load profile")
	}
	return c.JSON(me)
}

func (h *UserHandler) SetUsername(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.UsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	me, err := h.users.SetUsername(c.UserContext(), userID, req.Username)
	if err != nil {
		return serviceError(c, err, "Failed to set username")
	}
	return c.JSON(me)
}

func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	me, err := h.users.UpdateProfile(c.UserContext(), userID, &req)
	if err != nil {
		return serviceError(c, err, "Failed to update profile")
	}
	return c.JSON(me)
}

// UploadAvatar takes a multipart "file" field.
func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	name, mime, data, err := formFile(c, "file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "A file is required")
	}

	url, err := h.media.UploadAvatar(c.UserContext(), userID, name, mime, data)
	if err != nil {
		return serviceError(c, err, "Failed to upload avatar")
	}
	return c.JSON(fiber.Map{"avatar_url": url})
}

// Profile accepts a user id or a username.
func (h *UserHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.users.Profile(c.UserContext(), viewer.OptionalUserID(c), c.Params("id"))
	if err != nil {
		return serviceError(c, err, "Failed to load profile")
	}
	return c.JSON(profile)
}

func (h *UserHandler) Library(c *fiber.Ctx) error {
	user, err := h.users.Lookup(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err, "Failed to load library")
	}
	entries, err := h.library.List(c.UserContext(), user.ID, c.Query("status"))
	if err != nil {
		return serviceError(c, err, "Failed to load library")
	}
	return c.JSON(fiber.Map{"data": entries})
}

func formFile(c *fiber.Ctx, field string) (name, mime string, data []byte, err error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return "", "", nil, err
	}
	f, err := fh.Open()
	if err != nil {
		return "", "", nil, err
	}
	defer f.Close()
	data, err = io.ReadAll(f)
	if err != nil {
		return "", "", nil, err
	}
	return fh.Filename, fh.Header.Get(fiber.HeaderContentType), data, nil
}
