package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/pkg/utils"
)

type fakeKeyService struct {
	userIDs map[string]int64
}

func (f *fakeKeyService) Create(ctx context.Context, userID int64) (*models.ApiKey, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	id, ok := f.userIDs[apiKey]
	if !ok {
		return 0, errors.New("invalid api key")
	}
	return id, nil
}

func (f *fakeKeyService) Remove(ctx context.Context, userID, keyID int64) error {
	return errors.New("not implemented")
}

type fakeUserService struct {
	users map[int64]*models.User
}

func (f *fakeUserService) GetUserInfo(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("unknown user")
	}
	return u, nil
}

// newTestApp mirrors the server's registration order: RequireAuth on the
// /api group, every read route, then the admin group. The route/role
// matrix below depends on that order because Fiber applies group
// middleware to everything registered after it.
func newTestApp(t *testing.T) (*fiber.App, config.Config) {
	t.Helper()

	cfg := config.Config{
		SecretKey:  "0123456789abcdef0123456789abcdef",
		CookieName: "session",
	}

	keys := &fakeKeyService{userIDs: map[string]int64{"editor-key": 2}}
	users := &fakeUserService{users: map[int64]*models.User{
		2: {ID: 2, Role: models.RoleEditor},
	}}
	auth := NewAuthMiddleware(cfg, keys, users)

	ok := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}

	app := fiber.New()
	api := app.Group("/api")
	api.Use(auth.RequireAuth())

	api.Get("/posts", ok)
	api.Get("/accounts", ok)

	admin := api.Group("", auth.RequireAdmin())
	admin.Get("/accounts/connect/:platform", ok)
	admin.Post("/accounts/:id/verify", ok)
	admin.Delete("/accounts/:id", ok)
	admin.Post("/posts/:id/publish", ok)
	admin.Post("/posts/:id/retry", ok)

	return app, cfg
}

func sessionCookie(t *testing.T, cfg config.Config, userID, role string) *http.Cookie {
	t.Helper()

	token, err := utils.GenerateToken(cfg.SecretKey, userID, role, time.Hour)
	require.NoError(t, err)

	return &http.Cookie{Name: cfg.CookieName, Value: token}
}

func TestRouteRoleMatrix(t *testing.T) {
	app, cfg := newTestApp(t)

	editor := sessionCookie(t, cfg, "2", models.RoleEditor)
	admin := sessionCookie(t, cfg, "1", models.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		cookie *http.Cookie
		want   int
	}{
		{"editor lists accounts", "GET", "/api/accounts", editor, fiber.StatusOK},
		{"editor lists posts", "GET", "/api/posts", editor, fiber.StatusOK},
		{"editor cannot connect", "GET", "/api/accounts/connect/twitter", editor, fiber.StatusForbidden},
		{"editor cannot verify", "POST", "/api/accounts/1/verify", editor, fiber.StatusForbidden},
		{"editor cannot disconnect", "DELETE", "/api/accounts/1", editor, fiber.StatusForbidden},
		{"editor cannot publish", "POST", "/api/posts/1/publish", editor, fiber.StatusForbidden},
		{"editor cannot retry", "POST", "/api/posts/1/retry", editor, fiber.StatusForbidden},
		{"admin lists accounts", "GET", "/api/accounts", admin, fiber.StatusOK},
		{"admin can connect", "GET", "/api/accounts/connect/twitter", admin, fiber.StatusOK},
		{"admin can publish", "POST", "/api/posts/1/publish", admin, fiber.StatusOK},
		{"no credentials", "GET", "/api/accounts", nil, fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestApiKeyAuthResolvesRole(t *testing.T) {
	app, _ := newTestApp(t)

	// the fake key belongs to an editor, so reads pass and publishing is refused
	req := httptest.NewRequest("GET", "/api/accounts?api_key=editor-key", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("POST", "/api/posts/1/publish?api_key=editor-key", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/api/accounts?api_key=unknown", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
