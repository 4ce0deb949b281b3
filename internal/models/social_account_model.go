package models

import (
	"time"
)

const (
	PlatformTwitter   = "twitter"
	PlatformLinkedin  = "linkedin"
	PlatformInstagram = "instagram"
)

const (
	AccountStatusActive  = "active"
	AccountStatusExpired = "expired"
	AccountStatusRevoked = "revoked"
	AccountStatusPending = "pending"
)

func IsValidPlatform(platform string) bool {
	switch platform {
	case PlatformTwitter, PlatformLinkedin, PlatformInstagram:
		return true
	default:
		return false
	}
}

type SocialAccount struct {
	ID                 int64      `db:"id" json:"id"`
	Platform           string     `db:"platform" json:"platform"`
	AccountID          string     `db:"account_id" json:"account_id"`
	AccountName        string     `db:"account_name" json:"account_name"`
	AccountUsername    string     `db:"account_username" json:"account_username"`
	ProfilePicture     string     `db:"profile_picture_url" json:"profile_picture"`
	AccessToken        string     `db:"access_token" json:"-"`
	RefreshToken       string     `db:"refresh_token" json:"-"`
	TokenExpiresAt     *time.Time `db:"token_expires_at" json:"token_expires_at"`
	TokenScope         string     `db:"token_scope" json:"token_scope"`
	AccountStatus      string     `db:"account_status" json:"account_status"`
	RateLimitRemaining *int       `db:"rate_limit_remaining" json:"rate_limit_remaining"`
	RateLimitResetAt   *time.Time `db:"rate_limit_reset_at" json:"rate_limit_reset_at"`
	LastVerifiedAt     *time.Time `db:"last_verified_at" json:"last_verified_at"`
	ErrorMessage       string     `db:"error_message" json:"error_message"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// OAuthState is a single-use CSRF state row written when an operator starts
// the connect flow and consumed on the platform's callback. For Twitter it
// also carries the PKCE code verifier needed by the token exchange.
type OAuthState struct {
	State        string    `db:"state"`
	Platform     string    `db:"platform"`
	CodeVerifier string    `db:"code_verifier"`
	RedirectURI  string    `db:"redirect_uri"`
	CreatedAt    time.Time `db:"created_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}
