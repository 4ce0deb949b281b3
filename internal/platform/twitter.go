package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/transfer"
	"golang.org/x/oauth2"
)

const (
	twitterAuthURL    = "https://twitter.com/i/oauth2/authorize"
	twitterTokenURL   = "https://api.twitter.com/2/oauth2/token"
	twitterAPIURL     = "https://api.twitter.com/2"
	twitterScopes     = "tweet.read tweet.write users.read offline.access"
	twitterPostURLFmt = "https://x.com/i/web/status/%s"
)

type twitterClient struct {
	cfg config.Config
	api string
}

func NewTwitterClient(cfg config.Config) Client {
	return &twitterClient{cfg: cfg, api: twitterAPIURL}
}

func (t *twitterClient) Platform() string {
	return "twitter"
}

func (t *twitterClient) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     t.cfg.TwitterClientID,
		ClientSecret: t.cfg.TwitterClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Split(twitterScopes, " "),
		Endpoint: oauth2.Endpoint{
			AuthURL:   twitterAuthURL,
			TokenURL:  twitterTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthorizationURL embeds the S256 PKCE challenge; the paired verifier is
// stored with the state row and replayed at exchange time.
func (t *twitterClient) AuthorizationURL(req AuthRequest) string {
	conf := t.oauthConfig(req.RedirectURI)
	return conf.AuthCodeURL(req.State,
		oauth2.SetAuthURLParam("code_challenge", req.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

func (t *twitterClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error) {
	conf := t.oauthConfig(redirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		slog.Info(err.Error())
		return nil, &AuthenticationError{Platform: t.Platform(), Message: err.Error()}
	}

	return normalizeOAuth2Token(tok), nil
}

func (t *twitterClient) RefreshToken(ctx context.Context, token string) (*Token, error) {
	conf := t.oauthConfig(t.cfg.TwitterRedirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token}).Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, &TokenExpiredError{Platform: t.Platform(), Message: err.Error()}
	}

	return normalizeOAuth2Token(tok), nil
}

func (t *twitterClient) VerifyCredentials(ctx context.Context, accessToken string) (bool, error) {
	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("GET", t.api+"/users/me", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, classifyStatus(t.Platform(), resp.StatusCode, readBody(resp), nil)
	}
}

func (t *twitterClient) AccountInfo(ctx context.Context, accessToken string) (*AccountInfo, error) {
	reqURL := t.api + "/users/me?" + url.Values{
		"user.fields": {"profile_image_url"},
	}.Encode()

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("GET", reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(t.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	var result transfer.TwitterUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &AccountInfo{
		ID:             result.Data.ID,
		Name:           result.Data.Name,
		Username:       result.Data.Username,
		ProfilePicture: result.Data.ProfileImageURL,
	}, nil
}

func (t *twitterClient) CreatePost(ctx context.Context, accessToken, content string, mediaURLs []string) (*PostResult, error) {
	payload, err := json.Marshal(transfer.TwitterTweetRequest{Text: content})
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", t.api+"/tweets", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	remaining, resetAt := twitterRateLimit(resp)

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(t.Platform(), resp.StatusCode, readBody(resp), resetAt)
	}

	var result transfer.TwitterTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if result.Data.ID == "" {
		return nil, &APIError{Platform: t.Platform(), StatusCode: resp.StatusCode, Message: "no tweet id returned"}
	}

	return &PostResult{
		ID:                 result.Data.ID,
		URL:                fmt.Sprintf(twitterPostURLFmt, result.Data.ID),
		RateLimitRemaining: remaining,
		RateLimitResetAt:   resetAt,
	}, nil
}

func twitterRateLimit(resp *http.Response) (*int, *time.Time) {
	var remaining *int
	var resetAt *time.Time

	if v := resp.Header.Get("x-rate-limit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = &n
		}
	}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			t := time.Unix(unix, 0)
			resetAt = &t
		}
	}
	return remaining, resetAt
}

func normalizeOAuth2Token(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry
		t.ExpiresAt = &expiry
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	return t
}
