package middleware

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	cfg "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/service"
	"github.com/draftwire/socialcast/pkg/utils"
)

type AuthMiddleware struct {
	keys  service.ApiKeyService
	users service.UserService
	cfg   cfg.Config
}

func NewAuthMiddleware(cfg cfg.Config, keys service.ApiKeyService, users service.UserService) *AuthMiddleware {
	return &AuthMiddleware{keys: keys, users: users, cfg: cfg}
}

// RequireAuth accepts either the session cookie or an api_key query
// parameter and stores user_id and role in the request locals.
func (m *AuthMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cfg.CookieName)
		apiKey := c.Query("api_key")

		if tokenString == "" && apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing api key or session cookie",
			})
		}

		if apiKey != "" {
			userID, err := m.keys.GetUserID(c.Context(), apiKey)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": err.Error(),
				})
			}

			user, err := m.users.GetUserInfo(c.Context(), userID)
			if err != nil {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "unknown user",
				})
			}

			c.Locals("user_id", fmt.Sprintf("%d", userID))
			c.Locals("role", user.Role)
			return c.Next()
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			c.Cookie(&fiber.Cookie{
				Name:   m.cfg.CookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			slog.Info("token validation failed", slog.String("error", err.Error()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// RequireAdmin gates the routes that touch connected accounts or push
// content to the platforms. Must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		if role != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin role required",
			})
		}
		return c.Next()
	}
}
