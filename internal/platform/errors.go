package platform

import (
	"errors"
	"fmt"
	"time"
)

// AuthenticationError means an OAuth code exchange was rejected
// (invalid/expired/reused code). Not retryable.
type AuthenticationError struct {
	Platform string
	Message  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Platform, e.Message)
}

// TokenExpiredError means the platform rejected an access or refresh token.
// The account needs a manual reconnect; the engine never retries it.
type TokenExpiredError struct {
	Platform string
	Message  string
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("%s: token expired or revoked: %s", e.Platform, e.Message)
}

// RateLimitError carries the platform-reported reset time when available.
type RateLimitError struct {
	Platform string
	ResetAt  *time.Time
	Message  string
}

func (e *RateLimitError) Error() string {
	if e.ResetAt != nil {
		return fmt.Sprintf("%s: rate limited until %s: %s", e.Platform, e.ResetAt.Format(time.RFC3339), e.Message)
	}
	return fmt.Sprintf("%s: rate limited: %s", e.Platform, e.Message)
}

// ContentPolicyError means the platform rejected the content itself.
// Not retryable without a content change.
type ContentPolicyError struct {
	Platform string
	Message  string
}

func (e *ContentPolicyError) Error() string {
	return fmt.Sprintf("%s: content rejected: %s", e.Platform, e.Message)
}

// APIError is any other unexpected platform response. Transient variants
// (5xx, transport failures) are retried by the transport layer before being
// surfaced.
type APIError struct {
	Platform   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api error (status %d): %s", e.Platform, e.StatusCode, e.Message)
}

func IsTokenExpired(err error) bool {
	var te *TokenExpiredError
	return errors.As(err, &te)
}

func IsRateLimited(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}

// classifyStatus maps a non-2xx platform response onto the error taxonomy.
func classifyStatus(platformName string, statusCode int, body string, resetAt *time.Time) error {
	switch {
	case statusCode == 401:
		return &TokenExpiredError{Platform: platformName, Message: body}
	case statusCode == 403:
		return &ContentPolicyError{Platform: platformName, Message: body}
	case statusCode == 429:
		return &RateLimitError{Platform: platformName, ResetAt: resetAt, Message: body}
	default:
		return &APIError{Platform: platformName, StatusCode: statusCode, Message: body}
	}
}
