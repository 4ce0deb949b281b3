package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/draftwire/socialcast/internal/service"
)

type AssetHandler struct {
	s service.AssetService
}

func NewAssetHandler(service service.AssetService) *AssetHandler {
	return &AssetHandler{s: service}
}

func (h *AssetHandler) UploadAsset(c *fiber.Ctx) error {
	userID := GetUserID(c)

	file, err := c.FormFile("file")
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no file provided",
		})
	}

	asset, err := h.s.Upload(c.Context(), userID, file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(asset)
}

func (h *AssetHandler) ListAssets(c *fiber.Ctx) error {
	userID := GetUserID(c)

	assets, err := h.s.ListByUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unable to list media assets",
		})
	}

	return c.Status(fiber.StatusOK).JSON(assets)
}
