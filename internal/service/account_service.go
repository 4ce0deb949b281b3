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
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/oauth2"
)

const stateTTL = 10 * time.Minute

var (
	ErrUnknownPlatform = errors.New("unsupported platform")
	ErrAccountNotFound = errors.New("social account not found")
	ErrInvalidState    = errors.New("invalid, expired or already-used oauth state")
)

type AccountService interface {
	Connect(ctx context.Context, platformName string) (string, error)
	Callback(ctx context.Context, platformName, state, code, errParam string) error
	Verify(ctx context.Context, accountID int64) (*models.SocialAccount, error)
	RefreshToken(ctx context.Context, accountID int64) error
	Disconnect(ctx context.Context, accountID int64) error
	List(ctx context.Context) ([]*models.SocialAccount, error)
}

type accountService struct {
	cfg     config.Config
	sa      repository.SocialAccountRepository
	states  repository.OAuthStateRepository
	tokens  TokenService
	clients platform.Registry
}

func NewAccountService(
	cfg config.Config,
	sa repository.SocialAccountRepository,
	states repository.OAuthStateRepository,
	tokens TokenService,
	clients platform.Registry) AccountService {
	return &accountService{
		cfg:     cfg,
		sa:      sa,
		states:  states,
		tokens:  tokens,
		clients: clients,
	}
}

// Connect starts the OAuth flow: a fresh single-use state (and, for Twitter,
// a PKCE verifier) is persisted server-side, and the platform's consent URL
// is returned for the operator to be redirected to.
func (s *accountService) Connect(ctx context.Context, platformName string) (string, error) {
	client, ok := s.clients.Get(platformName)
	if !ok {
		return "", ErrUnknownPlatform
	}

	state, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	var verifier, challenge string
	if platformName == models.PlatformTwitter {
		verifier = oauth2.GenerateVerifier()
		challenge = oauth2.S256ChallengeFromVerifier(verifier)
	}

	redirectURI := s.redirectURI(platformName)
	row := models.OAuthState{
		State:        state,
		Platform:     platformName,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
		ExpiresAt:    time.Now().Add(stateTTL),
	}
	if err := s.states.Create(ctx, &row); err != nil {
		return "", err
	}

	return client.AuthorizationURL(platform.AuthRequest{
		State:         state,
		RedirectURI:   redirectURI,
		CodeChallenge: challenge,
	}), nil
}

// Callback completes the flow. A failed callback never creates or modifies
// an account row; the upsert only runs after exchange and identity fetch
// both succeeded.
func (s *accountService) Callback(ctx context.Context, platformName, state, code, errParam string) error {
	client, ok := s.clients.Get(platformName)
	if !ok {
		return ErrUnknownPlatform
	}

	if errParam != "" {
		return fmt.Errorf("platform denied authorization: %s", errParam)
	}
	if code == "" {
		return errors.New("authorization code is empty")
	}

	stored, err := s.states.Consume(ctx, state, platformName)
	if err != nil {
		return err
	}
	if stored == nil {
		return ErrInvalidState
	}

	token, err := client.ExchangeCode(ctx, code, stored.RedirectURI, stored.CodeVerifier)
	if err != nil {
		return err
	}

	info, err := client.AccountInfo(ctx, token.AccessToken)
	if err != nil {
		return err
	}

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

	account := &models.SocialAccount{
		Platform:        platformName,
		AccountID:       info.ID,
		AccountName:     info.Name,
		AccountUsername: info.Username,
		ProfilePicture:  info.ProfilePicture,
		AccessToken:     encryptedAccess,
		RefreshToken:    encryptedRefresh,
		TokenExpiresAt:  token.ExpiresAt,
		TokenScope:      token.Scope,
		AccountStatus:   models.AccountStatusActive,
	}

	if _, err := s.sa.Upsert(ctx, account); err != nil {
		return err
	}

	return nil
}

// Verify runs a lightweight identity check against the platform. A false
// answer is an expected auth failure, not an error: the account flips to
// expired with a reconnect message.
func (s *accountService) Verify(ctx context.Context, accountID int64) (*models.SocialAccount, error) {
	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	client, ok := s.clients.Get(account.Platform)
	if !ok {
		return nil, ErrUnknownPlatform
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	valid, err := client.VerifyCredentials(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if !valid {
		message := "credentials rejected by platform; reconnect the account"
		if err := s.sa.SetStatus(ctx, account.ID, models.AccountStatusExpired, message); err != nil {
			return nil, err
		}
		account.AccountStatus = models.AccountStatusExpired
		account.ErrorMessage = message
		return account, nil
	}

	// Opportunistically freshen the cached profile; verification stands
	// even when the profile fetch fails.
	if info, err := client.AccountInfo(ctx, accessToken); err == nil {
		if err := s.sa.UpdateProfile(ctx, account.ID, info.Name, info.Username, info.ProfilePicture); err == nil {
			account.AccountName = info.Name
			account.AccountUsername = info.Username
			account.ProfilePicture = info.ProfilePicture
		}
	}

	if err := s.sa.MarkVerified(ctx, account.ID); err != nil {
		return nil, err
	}
	now := time.Now()
	account.LastVerifiedAt = &now
	account.ErrorMessage = ""
	return account, nil
}

func (s *accountService) RefreshToken(ctx context.Context, accountID int64) error {
	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}

	_, err = s.tokens.Refresh(ctx, account)
	return err
}

// Disconnect hard deletes the account. Deleting an already-deleted account
// is a no-op, so the operation is idempotent.
func (s *accountService) Disconnect(ctx context.Context, accountID int64) error {
	return s.sa.Remove(ctx, accountID)
}

func (s *accountService) List(ctx context.Context) ([]*models.SocialAccount, error) {
	return s.sa.List(ctx)
}

func (s *accountService) redirectURI(platformName string) string {
	switch platformName {
	case models.PlatformTwitter:
		return s.cfg.TwitterRedirectURI
	case models.PlatformLinkedin:
		return s.cfg.LinkedinRedirectURI
	case models.PlatformInstagram:
		return s.cfg.InstagramRedirectURI
	default:
		return ""
	}
}
