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

type accountFixture struct {
	sa     *fakeSocialAccountRepo
	states *fakeOAuthStateRepo
	client *fakeClient
	svc    AccountService
}

func newAccountFixture(t *testing.T, platformName string) *accountFixture {
	t.Helper()

	f := &accountFixture{
		sa:     newFakeSocialAccountRepo(),
		states: newFakeOAuthStateRepo(),
		client: &fakeClient{platformName: platformName},
	}

	cfg := config.Config{
		SecretKey:            testSecretKey,
		TwitterRedirectURI:   "https://app.example.com/auth/twitter/callback",
		LinkedinRedirectURI:  "https://app.example.com/auth/linkedin/callback",
		InstagramRedirectURI: "https://app.example.com/auth/instagram/callback",
	}
	clients := platform.Registry{platformName: f.client}
	tokens := NewTokenService(cfg, f.sa, clients)
	f.svc = NewAccountService(cfg, f.sa, f.states, tokens, clients)
	return f
}

func TestConnectUnknownPlatform(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	_, err := f.svc.Connect(context.Background(), "myspace")
	assert.True(t, errors.Is(err, ErrUnknownPlatform))
}

func TestConnectTwitterPersistsStateAndVerifier(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	var captured platform.AuthRequest
	f.client.authorizeFn = func(req platform.AuthRequest) string {
		captured = req
		return "https://twitter.example/authorize?state=" + req.State
	}

	authURL, err := f.svc.Connect(context.Background(), models.PlatformTwitter)
	require.NoError(t, err)
	assert.Contains(t, authURL, captured.State)
	assert.NotEmpty(t, captured.CodeChallenge, "twitter gets a PKCE challenge")
	assert.Equal(t, "https://app.example.com/auth/twitter/callback", captured.RedirectURI)

	// The paired verifier lives server-side with the state row, never in
	// a cookie or the URL.
	stored, err := f.states.Consume(context.Background(), captured.State, models.PlatformTwitter)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.CodeVerifier)
	assert.NotEqual(t, stored.CodeVerifier, captured.CodeChallenge)
}

func TestConnectLinkedinHasNoPKCE(t *testing.T) {
	f := newAccountFixture(t, models.PlatformLinkedin)

	var captured platform.AuthRequest
	f.client.authorizeFn = func(req platform.AuthRequest) string {
		captured = req
		return "https://linkedin.example/authorize"
	}

	_, err := f.svc.Connect(context.Background(), models.PlatformLinkedin)
	require.NoError(t, err)
	assert.Empty(t, captured.CodeChallenge)
}

func TestCallbackStoresEncryptedTokens(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	var captured platform.AuthRequest
	f.client.authorizeFn = func(req platform.AuthRequest) string {
		captured = req
		return "url"
	}
	f.client.exchangeFn = func(ctx context.Context, code, redirectURI, codeVerifier string) (*platform.Token, error) {
		assert.Equal(t, "c0de", code)
		assert.Equal(t, "https://app.example.com/auth/twitter/callback", redirectURI)
		assert.NotEmpty(t, codeVerifier, "stored verifier is replayed at exchange time")
		return &platform.Token{
			AccessToken:  "plain-access",
			RefreshToken: "plain-refresh",
			ExpiresAt:    timePtr(time.Now().Add(2 * time.Hour)),
			Scope:        "tweet.write",
		}, nil
	}

	_, err := f.svc.Connect(context.Background(), models.PlatformTwitter)
	require.NoError(t, err)

	err = f.svc.Callback(context.Background(), models.PlatformTwitter, captured.State, "c0de", "")
	require.NoError(t, err)

	accounts, _ := f.sa.List(context.Background())
	require.Len(t, accounts, 1)
	acc := accounts[0]
	assert.Equal(t, models.AccountStatusActive, acc.AccountStatus)
	assert.Equal(t, "acct-1", acc.AccountID)
	assert.NotEqual(t, "plain-access", acc.AccessToken)

	decrypted, err := utils.Decrypt(acc.AccessToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "plain-access", decrypted)
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	var captured platform.AuthRequest
	f.client.authorizeFn = func(req platform.AuthRequest) string {
		captured = req
		return "url"
	}

	_, err := f.svc.Connect(context.Background(), models.PlatformTwitter)
	require.NoError(t, err)

	require.NoError(t, f.svc.Callback(context.Background(), models.PlatformTwitter, captured.State, "c0de", ""))

	err = f.svc.Callback(context.Background(), models.PlatformTwitter, captured.State, "c0de", "")
	assert.True(t, errors.Is(err, ErrInvalidState), "a consumed state never validates again")
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	err := f.svc.Callback(context.Background(), models.PlatformTwitter, "forged", "c0de", "")
	assert.True(t, errors.Is(err, ErrInvalidState))

	accounts, _ := f.sa.List(context.Background())
	assert.Empty(t, accounts, "failed callback writes nothing")
}

func TestCallbackDeniedWritesNothing(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	err := f.svc.Callback(context.Background(), models.PlatformTwitter, "any", "", "access_denied")
	require.Error(t, err)

	accounts, _ := f.sa.List(context.Background())
	assert.Empty(t, accounts)
}

func TestReconnectUpsertsSameRow(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	connect := func() string {
		var captured platform.AuthRequest
		f.client.authorizeFn = func(req platform.AuthRequest) string {
			captured = req
			return "url"
		}
		_, err := f.svc.Connect(context.Background(), models.PlatformTwitter)
		require.NoError(t, err)
		return captured.State
	}

	require.NoError(t, f.svc.Callback(context.Background(), models.PlatformTwitter, connect(), "first", ""))
	require.NoError(t, f.svc.Callback(context.Background(), models.PlatformTwitter, connect(), "second", ""))

	// Same platform identity reconnecting replaces credentials in place.
	accounts, _ := f.sa.List(context.Background())
	require.Len(t, accounts, 1)

	decrypted, err := utils.Decrypt(accounts[0].AccessToken, []byte(testSecretKey))
	require.NoError(t, err)
	assert.Equal(t, "access-second", decrypted)
}

func TestVerifyFlipsRejectedAccountToExpired(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)
	f.client.verifyFn = func(ctx context.Context, accessToken string) (bool, error) {
		return false, nil
	}

	acc := f.sa.add(&models.SocialAccount{
		Platform:      models.PlatformTwitter,
		AccountID:     "acct-1",
		AccessToken:   encryptForTest(t, "stale"),
		AccountStatus: models.AccountStatusActive,
	})

	verified, err := f.svc.Verify(context.Background(), acc.ID)
	require.NoError(t, err, "an expected auth failure is not an error")
	assert.Equal(t, models.AccountStatusExpired, verified.AccountStatus)
	assert.Contains(t, verified.ErrorMessage, "reconnect")
}

func TestVerifyFreshensProfile(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)
	f.client.accountInfoFn = func(ctx context.Context, accessToken string) (*platform.AccountInfo, error) {
		return &platform.AccountInfo{ID: "acct-1", Name: "New Name", Username: "newhandle"}, nil
	}

	acc := f.sa.add(&models.SocialAccount{
		Platform:      models.PlatformTwitter,
		AccountID:     "acct-1",
		AccountName:   "Old Name",
		AccessToken:   encryptForTest(t, "live"),
		AccountStatus: models.AccountStatusActive,
	})

	verified, err := f.svc.Verify(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", verified.AccountName)
	assert.NotNil(t, verified.LastVerifiedAt)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newAccountFixture(t, models.PlatformTwitter)

	acc := f.sa.add(&models.SocialAccount{
		Platform:      models.PlatformTwitter,
		AccountID:     "acct-1",
		AccountStatus: models.AccountStatusActive,
	})

	require.NoError(t, f.svc.Disconnect(context.Background(), acc.ID))
	require.NoError(t, f.svc.Disconnect(context.Background(), acc.ID))

	accounts, _ := f.sa.List(context.Background())
	assert.Empty(t, accounts)
}
