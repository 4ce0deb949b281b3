package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	cfg "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/internal/transfer"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type AuthService interface {
	LoginURL(state string) string
	LoginCallback(ctx context.Context, code string) (*models.User, error)
}

type authService struct {
	cfg cfg.Config
	u   repository.UserRepository
}

func NewAuthService(cfg cfg.Config, u repository.UserRepository) AuthService {
	return &authService{
		cfg: cfg,
		u:   u,
	}
}

func (s *authService) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.cfg.GoogleClientID,
		ClientSecret: s.cfg.GoogleClientSecret,
		RedirectURL:  s.cfg.GoogleRedirectURI,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func (s *authService) LoginURL(state string) string {
	return s.oauth2Config().AuthCodeURL(state)
}

// LoginCallback exchanges the Google code and resolves the operator account.
// The very first operator to sign in becomes admin; everyone after that
// starts as an editor.
func (s *authService) LoginCallback(ctx context.Context, code string) (*models.User, error) {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return nil, err
	}

	oauth2Config := s.oauth2Config()
	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err := errors.New("google oauth2 configuration is incomplete")
		slog.Info(err.Error())
		return nil, err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	userInfo, err := fetchGoogleUserInfo(oauth2Config.Client(ctx, token))
	if err != nil {
		return nil, err
	}

	user, exists, err := s.u.GetByEmail(ctx, userInfo.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return user, nil
	}

	count, err := s.u.Count(ctx)
	if err != nil {
		return nil, err
	}

	role := models.RoleEditor
	if count == 0 {
		role = models.RoleAdmin
	}

	newUser := models.User{
		GoogleID:       userInfo.ID,
		Email:          userInfo.Email,
		Name:           userInfo.Name,
		ProfilePicture: userInfo.Picture,
		Role:           role,
	}

	id, err := s.u.Create(ctx, &newUser)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	newUser.ID = id

	return &newUser, nil
}

func fetchGoogleUserInfo(client *http.Client) (*transfer.GoogleUserInfo, error) {
	resp, err := client.Get(googleUserInfoURL)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.New("failed to fetch google user info")
		slog.Info(err.Error())
		return nil, err
	}

	var userInfo transfer.GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &userInfo, nil
}
