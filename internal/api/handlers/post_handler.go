package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/draftwire/socialcast/internal/queue"
	"github.com/draftwire/socialcast/internal/service"
	"github.com/draftwire/socialcast/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	publisher   service.PublishService
	AsynqClient *asynq.Client
}

func NewPostHandler(s service.PostService, publisher service.PublishService, asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: s, publisher: publisher, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var pc transfer.PostCreation
	if err := c.BodyParser(&pc); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	post, delay, err := h.s.Create(c.Context(), &pc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if post.ScheduledAt != nil && post.AutoPublish {
		if err := queue.EnqueuePublish(h.AsynqClient, queue.PublishPostPayload{PostID: post.ID}, delay); err != nil {
			slog.Info(err.Error(), slog.Int64("post_id", post.ID))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "post saved but scheduling failed",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	var pu transfer.PostUpdate
	if err := c.BodyParser(&pu); err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unable to parse request body",
		})
	}

	post, delay, err := h.s.Update(c.Context(), int64(postID), &pu)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrPostImmutable), errors.Is(err, service.ErrPublishInFlight):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if post.ScheduledAt != nil && post.AutoPublish {
		if err := queue.EnqueuePublish(h.AsynqClient, queue.PublishPostPayload{PostID: post.ID}, delay); err != nil {
			slog.Info(err.Error(), slog.Int64("post_id", post.ID))
		}
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), c.Query("platform"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to list posts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	post, err := h.s.Get(c.Context(), int64(postID))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to fetch post",
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

// PublishPost pushes a draft or scheduled post to its platform right now.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	post, err := h.publisher.Publish(c.Context(), int64(postID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrAlreadyPublished), errors.Is(err, service.ErrPublishInFlight):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, service.ErrNoActiveAccount), errors.Is(err, service.ErrReconnectRequired):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RetryPost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	if err := h.s.ResetFailed(c.Context(), int64(postID)); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) PostHistory(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	attempts, err := h.s.History(c.Context(), int64(postID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to fetch publish history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(attempts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	postID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid post id",
		})
	}

	if err := h.s.Remove(c.Context(), int64(postID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to remove post",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
