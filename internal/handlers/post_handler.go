package handlers

import (
	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/services"
	"github.com/gamdit/gamebox/internal/viewer"
	"github.com/gofiber/fiber/v2"
)

type PostHandler struct {
	posts *services.PostService
	media *services.MediaService
}

func NewPostHandler(posts *services.PostService, media *services.MediaService) *PostHandler {
	return &PostHandler{posts: posts, media: media}
}

func (h *PostHandler) Create(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req dto.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	item, err := h.posts.Create(c.UserContext(), userID, &req)
	if err != nil {
		return serviceError(c, err, "Failed to create post")
	}
	return c.Status(fiber.StatusCreated).JSON(item)
}

func (h *PostHandler) Get(c *fiber.Ctx) error {
	postID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	item, err := h.posts.Get(c.UserContext(), viewer.OptionalUserID(c), postID)
	if err != nil {
		return serviceError(c, err, "Failed to load post")
	}
	return c.JSON(item)
}

func (h *PostHandler) Delete(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.posts.Delete(c.UserContext(), userID, postID); err != nil {
		return serviceError(c, err, "Failed to delete post")
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (h *PostHandler) AddComment(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	comment, err := h.posts.AddComment(c.UserContext(), userID, postID, req.Body)
	if err != nil {
		return serviceError(c, err, "Failed to add comment")
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *PostHandler) Comments(c *fiber.Ctx) error {
	postID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	cursor, limit, err := pageParams(c)
	if err != nil {
		return err
	}
	page, err := h.posts.ListComments(c.UserContext(), postID, cursor, limit)
	if err != nil {
		return serviceError(c, err, "Failed to load comments")
	}
	return c.JSON(page)
}

func (h *PostHandler) DeleteComment(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	commentID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.posts.DeleteComment(c.UserContext(), userID, commentID); err != nil {
		return serviceError(c, err, "Failed to delete comment")
	}
	return c.JSON(fiber.Map{"ok": true})
}

// UploadMedia stores an image or video for a post that is about to be written.
func (h *PostHandler) UploadMedia(c *fiber.Ctx) error {
	userID, err := viewer.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	name, mime, data, err := formFile(c, "file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "A file is required")
	}

	res, err := h.media.UploadPostMedia(c.UserContext(), userID, name, mime, data)
	if err != nil {
		return serviceError(c, err, "Failed to upload media")
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}
