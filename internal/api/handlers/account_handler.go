package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	cfg "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/service"
)

type AccountHandler struct {
	s   service.AccountService
	cfg cfg.Config
}

func NewAccountHandler(cfg cfg.Config, service service.AccountService) *AccountHandler {
	return &AccountHandler{s: service, cfg: cfg}
}

// Connect starts the consent flow for a platform and redirects the operator
// to the provider's authorization page.
func (h *AccountHandler) Connect(c *fiber.Ctx) error {
	authURL, err := h.s.Connect(c.Context(), c.Params("platform"))
	if err != nil {
		if errors.Is(err, service.ErrUnknownPlatform) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to start authorization",
		})
	}
	return c.Redirect(authURL)
}

func (h *AccountHandler) Callback(c *fiber.Ctx) error {
	platform := c.Params("platform")
	state := c.Query("state")
	code := c.Query("code")
	errParam := c.Query("error")

	if err := h.s.Callback(c.Context(), platform, state, code, errParam); err != nil {
		slog.Info(err.Error(), slog.String("platform", platform))
		if errors.Is(err, service.ErrInvalidState) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	redirectURL := fmt.Sprintf("%s/accounts", h.cfg.FrontendURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *AccountHandler) List(c *fiber.Ctx) error {
	accounts, err := h.s.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to fetch social accounts",
		})
	}
	return c.Status(fiber.StatusOK).JSON(accounts)
}

func (h *AccountHandler) Verify(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	account, err := h.s.Verify(c.Context(), int64(accountID))
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "verification failed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(account)
}

func (h *AccountHandler) RefreshToken(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	if err := h.s.RefreshToken(c.Context(), int64(accountID)); err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		if errors.Is(err, service.ErrReconnectRequired) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "token refresh failed, account must be reconnected",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "token refresh failed",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *AccountHandler) Disconnect(c *fiber.Ctx) error {
	accountID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid account id",
		})
	}

	if err := h.s.Disconnect(c.Context(), int64(accountID)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to disconnect social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
