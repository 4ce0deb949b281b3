package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/platform"
	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/pkg/utils"
)

// ErrReconnectRequired means refresh/extension failed and the account is
// unusable until an operator re-runs the OAuth flow. Terminal for the
// calling operation; never retried automatically.
var ErrReconnectRequired = errors.New("account token expired; reconnect required")

// IsTokenExpired treats a nil expiry as not expired: unknown-duration tokens
// stay optimistically valid until a call against them fails.
func IsTokenExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	return !time.Now().Before(*expiresAt)
}

type TokenService interface {
	// EnsureValid returns a plaintext access token for the account, lazily
	// refreshing first when the stored one has expired.
	EnsureValid(ctx context.Context, acc *models.SocialAccount) (string, error)

	// Refresh forces a refresh (or an Instagram long-lived extension) and
	// persists the rotated credentials.
	Refresh(ctx context.Context, acc *models.SocialAccount) (string, error)
}

type tokenService struct {
	cfg     config.Config
	sa      repository.SocialAccountRepository
	clients platform.Registry
}

func NewTokenService(cfg config.Config, sa repository.SocialAccountRepository, clients platform.Registry) TokenService {
	return &tokenService{
		cfg:     cfg,
		sa:      sa,
		clients: clients,
	}
}

func (s *tokenService) EnsureValid(ctx context.Context, acc *models.SocialAccount) (string, error) {
	if !IsTokenExpired(acc.TokenExpiresAt) {
		accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			slog.Info(err.Error())
			return "", err
		}
		return accessToken, nil
	}

	return s.Refresh(ctx, acc)
}

func (s *tokenService) Refresh(ctx context.Context, acc *models.SocialAccount) (string, error) {
	client, ok := s.clients.Get(acc.Platform)
	if !ok {
		return "", fmt.Errorf("no client for platform %q", acc.Platform)
	}

	refreshInput, err := s.refreshInput(acc)
	if err != nil {
		s.markExpired(ctx, acc, err.Error())
		return "", fmt.Errorf("%s: %w", err.Error(), ErrReconnectRequired)
	}

	token, err := client.RefreshToken(ctx, refreshInput)
	if err != nil {
		slog.Info(err.Error())
		s.markExpired(ctx, acc, fmt.Sprintf("token refresh failed: %v", err))
		return "", fmt.Errorf("refreshing %s token: %w", acc.Platform, ErrReconnectRequired)
	}

	if err := s.persistToken(ctx, acc, token); err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// refreshInput picks what gets sent to the platform's refresh endpoint:
// the refresh token when one exists, or the current access token for
// Instagram's long-lived extension. Anything else has no refresh path.
func (s *tokenService) refreshInput(acc *models.SocialAccount) (string, error) {
	if acc.RefreshToken != "" {
		refreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return "", errors.New("stored refresh token is unreadable")
		}
		return refreshToken, nil
	}

	if acc.Platform == models.PlatformInstagram {
		accessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
		if err != nil {
			return "", errors.New("stored access token is unreadable")
		}
		return accessToken, nil
	}

	return "", fmt.Errorf("%s token expired and no refresh token is stored", acc.Platform)
}

func (s *tokenService) persistToken(ctx context.Context, acc *models.SocialAccount, token *platform.Token) error {
	encryptedAccess, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var encryptedRefresh string
	if token.RefreshToken != "" {
		encryptedRefresh, err = utils.Encrypt([]byte(token.RefreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	if err := s.sa.UpdateTokens(ctx, acc.ID, encryptedAccess, encryptedRefresh, token.ExpiresAt, token.Scope); err != nil {
		return err
	}

	acc.AccessToken = encryptedAccess
	if encryptedRefresh != "" {
		acc.RefreshToken = encryptedRefresh
	}
	acc.TokenExpiresAt = token.ExpiresAt
	acc.AccountStatus = models.AccountStatusActive
	acc.ErrorMessage = ""
	return nil
}

func (s *tokenService) markExpired(ctx context.Context, acc *models.SocialAccount, reason string) {
	message := reason + "; reconnect the account"
	if err := s.sa.SetStatus(ctx, acc.ID, models.AccountStatusExpired, message); err != nil {
		slog.Info(err.Error())
	}
	acc.AccountStatus = models.AccountStatusExpired
	acc.ErrorMessage = message
}
