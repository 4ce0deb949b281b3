package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/platform"
	"github.com/draftwire/socialcast/pkg/utils"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

func encryptForTest(t *testing.T, plaintext string) string {
	t.Helper()
	encrypted, err := utils.Encrypt([]byte(plaintext), []byte(testSecretKey))
	require.NoError(t, err)
	return encrypted
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestIsTokenExpired(t *testing.T) {
	assert.False(t, IsTokenExpired(nil), "unknown lifetime stays valid")
	assert.False(t, IsTokenExpired(timePtr(time.Now().Add(time.Hour))))
	assert.True(t, IsTokenExpired(timePtr(time.Now().Add(-time.Second))))
}

func TestEnsureValidReturnsStoredToken(t *testing.T) {
	sa := newFakeSocialAccountRepo()
	client := &fakeClient{platformName: models.PlatformTwitter}
	svc := NewTokenService(config.Config{SecretKey: testSecretKey}, sa, platform.Registry{models.PlatformTwitter: client})

	acc := sa.add(&models.SocialAccount{
		Platform:       models.PlatformTwitter,
		AccessToken:    encryptForTest(t, "live-token"),
		TokenExpiresAt: timePtr(time.Now().Add(time.Hour)),
		AccountStatus:  models.AccountStatusActive,
	})

	token, err := svc.EnsureValid(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "live-token", token)
}

func TestEnsureValidRefreshesExpiredToken(t *testing.T) {
	sa := newFakeSocialAccountRepo()
	client := &fakeClient{
		platformName: models.PlatformTwitter,
		refreshFn: func(ctx context.Context, token string) (*platform.Token, error) {
			assert.Equal(t, "old-refresh", token)
			return &platform.Token{
				AccessToken:  "new-access",
				RefreshToken: "new-refresh",
				ExpiresAt:    timePtr(time.Now().Add(2 * time.Hour)),
			}, nil
		},
	}
	svc := NewTokenService(config.Config{SecretKey: testSecretKey}, sa, platform.Registry{models.PlatformTwitter: client})

	acc := sa.add(&models.SocialAccount{
		Platform:       models.PlatformTwitter,
		AccessToken:    encryptForTest(t, "stale-access"),
		RefreshToken:   encryptForTest(t, "old-refresh"),
		TokenExpiresAt: timePtr(time.Now().Add(-time.Minute)),
		AccountStatus:  models.AccountStatusActive,
	})

	token, err := svc.EnsureValid(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)

	// Rotated credentials are persisted encrypted, never in the clear.
	stored, err := sa.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "new-access", stored.AccessToken)

	decrypted, err := utils.Decrypt(stored.AccessToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "new-access", decrypted)

	decryptedRefresh, err := utils.Decrypt(stored.RefreshToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", decryptedRefresh)
	assert.Equal(t, models.AccountStatusActive, stored.AccountStatus)
}

func TestRefreshFailureMarksAccountExpired(t *testing.T) {
	sa := newFakeSocialAccountRepo()
	client := &fakeClient{
		platformName: models.PlatformTwitter,
		refreshFn: func(ctx context.Context, token string) (*platform.Token, error) {
			return nil, &platform.TokenExpiredError{Platform: "twitter", Message: "revoked"}
		},
	}
	svc := NewTokenService(config.Config{SecretKey: testSecretKey}, sa, platform.Registry{models.PlatformTwitter: client})

	acc := sa.add(&models.SocialAccount{
		Platform:       models.PlatformTwitter,
		AccessToken:    encryptForTest(t, "stale"),
		RefreshToken:   encryptForTest(t, "bad-refresh"),
		TokenExpiresAt: timePtr(time.Now().Add(-time.Minute)),
		AccountStatus:  models.AccountStatusActive,
	})

	_, err := svc.EnsureValid(context.Background(), acc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReconnectRequired))

	stored, _ := sa.GetByID(context.Background(), acc.ID)
	assert.Equal(t, models.AccountStatusExpired, stored.AccountStatus)
	assert.Contains(t, stored.ErrorMessage, "reconnect")
}

func TestRefreshWithoutRefreshTokenRequiresReconnect(t *testing.T) {
	sa := newFakeSocialAccountRepo()
	client := &fakeClient{platformName: models.PlatformLinkedin}
	svc := NewTokenService(config.Config{SecretKey: testSecretKey}, sa, platform.Registry{models.PlatformLinkedin: client})

	acc := sa.add(&models.SocialAccount{
		Platform:       models.PlatformLinkedin,
		AccessToken:    encryptForTest(t, "stale"),
		TokenExpiresAt: timePtr(time.Now().Add(-time.Minute)),
		AccountStatus:  models.AccountStatusActive,
	})

	_, err := svc.EnsureValid(context.Background(), acc)
	assert.True(t, errors.Is(err, ErrReconnectRequired))

	stored, _ := sa.GetByID(context.Background(), acc.ID)
	assert.Equal(t, models.AccountStatusExpired, stored.AccountStatus)
}

func TestInstagramExtensionUsesAccessToken(t *testing.T) {
	sa := newFakeSocialAccountRepo()
	client := &fakeClient{
		platformName: models.PlatformInstagram,
		refreshFn: func(ctx context.Context, token string) (*platform.Token, error) {
			// Instagram has no refresh token; the current long-lived
			// access token is extended in place.
			assert.Equal(t, "long-lived", token)
			return &platform.Token{AccessToken: "extended", ExpiresAt: timePtr(time.Now().Add(60 * 24 * time.Hour))}, nil
		},
	}
	svc := NewTokenService(config.Config{SecretKey: testSecretKey}, sa, platform.Registry{models.PlatformInstagram: client})

	acc := sa.add(&models.SocialAccount{
		Platform:       models.PlatformInstagram,
		AccessToken:    encryptForTest(t, "long-lived"),
		TokenExpiresAt: timePtr(time.Now().Add(-time.Minute)),
		AccountStatus:  models.AccountStatusActive,
	})

	token, err := svc.EnsureValid(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "extended", token)
}
