package platform

import (
	"context"
	"time"
)

// AuthRequest carries the per-connection parameters for building a consent
// URL. CodeChallenge is only set for platforms using PKCE (Twitter).
type AuthRequest struct {
	State         string
	RedirectURI   string
	CodeChallenge string
}

// Token is the normalized result of a code exchange, token refresh or
// long-lived-token extension. ExpiresAt is nil when the platform does not
// report a lifetime; RefreshToken is empty when the platform has none.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scope        string
}

// AccountInfo is the platform identity a token belongs to.
type AccountInfo struct {
	ID             string
	Name           string
	Username       string
	ProfilePicture string
}

// PostResult is the outcome of a successful create-post call. Rate-limit
// fields are advisory and only set when the platform reports them.
type PostResult struct {
	ID                 string
	URL                string
	RateLimitRemaining *int
	RateLimitResetAt   *time.Time
}

// Client is the capability set every platform implementation provides. The
// connection manager and publish engine are written once against it; all
// platform-specific HTTP shapes and auth quirks stay behind it.
type Client interface {
	Platform() string
	AuthorizationURL(req AuthRequest) string
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error)

	// RefreshToken exchanges the given token for a fresh one. For Twitter
	// and LinkedIn the input is the refresh token; for Instagram it is the
	// current long-lived access token, which gets extended in place.
	RefreshToken(ctx context.Context, token string) (*Token, error)

	// VerifyCredentials returns false (not an error) on an expected auth
	// failure, so manual re-verification can flip the account state cleanly.
	VerifyCredentials(ctx context.Context, accessToken string) (bool, error)

	AccountInfo(ctx context.Context, accessToken string) (*AccountInfo, error)
	CreatePost(ctx context.Context, accessToken, content string, mediaURLs []string) (*PostResult, error)
}

// Registry is the closed set of supported platforms. Adding a platform means
// adding one Client implementation here, never touching the engine.
type Registry map[string]Client

func (r Registry) Get(platformName string) (Client, bool) {
	c, ok := r[platformName]
	return c, ok
}

func expiresAt(expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := time.Now().Add(time.Duration(expiresIn) * time.Second)
	return &t
}
