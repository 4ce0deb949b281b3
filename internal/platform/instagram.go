package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/transfer"
)

const (
	instagramAuthURL  = "https://www.instagram.com/oauth/authorize"
	instagramOAuthURL = "https://api.instagram.com/oauth/access_token"
	instagramGraphURL = "https://graph.instagram.com"
	instagramScopes   = "instagram_business_basic,instagram_business_content_publish"
)

// instagramClient implements the Graph API flow: the authorization code is
// exchanged for a short-lived token which is immediately traded for a
// long-lived one. There is no refresh token; RefreshToken extends the
// long-lived access token in place.
type instagramClient struct {
	cfg   config.Config
	oauth string
	graph string
}

func NewInstagramClient(cfg config.Config) Client {
	return &instagramClient{
		cfg:   cfg,
		oauth: instagramOAuthURL,
		graph: instagramGraphURL,
	}
}

func (ig *instagramClient) Platform() string {
	return "instagram"
}

func (ig *instagramClient) AuthorizationURL(req AuthRequest) string {
	params := url.Values{}
	params.Add("client_id", ig.cfg.InstagramClientID)
	params.Add("scope", instagramScopes)
	params.Add("response_type", "code")
	params.Add("redirect_uri", req.RedirectURI)
	params.Add("state", req.State)

	return fmt.Sprintf("%s?%s", instagramAuthURL, params.Encode())
}

func (ig *instagramClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error) {
	shortLived, err := ig.shortLivedToken(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	return ig.longLivedToken(ctx, shortLived)
}

func (ig *instagramClient) shortLivedToken(ctx context.Context, code, redirectURI string) (string, error) {
	data := url.Values{}
	data.Set("client_id", ig.cfg.InstagramClientID)
	data.Set("client_secret", ig.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", redirectURI)
	data.Set("code", code)
	encoded := data.Encode()

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", ig.oauth, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &AuthenticationError{Platform: ig.Platform(), Message: readBody(resp)}
	}

	var result transfer.InstagramShortLivedToken
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if result.AccessToken == "" {
		return "", &AuthenticationError{Platform: ig.Platform(), Message: "no access token returned"}
	}

	return result.AccessToken, nil
}

func (ig *instagramClient) longLivedToken(ctx context.Context, shortLived string) (*Token, error) {
	reqURL := fmt.Sprintf(
		"%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		ig.graph, ig.cfg.InstagramClientSecret, shortLived,
	)

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequest("GET", reqURL, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(ig.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	var result transfer.InstagramTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresAt:   expiresAt(result.ExpiresIn),
	}, nil
}

// RefreshToken extends the given long-lived access token. Instagram rejects
// extension of tokens younger than 24h and of already-expired tokens; both
// surface as TokenExpiredError so the account flips to reconnect-required
// only when a dependent operation actually needed the refresh.
func (ig *instagramClient) RefreshToken(ctx context.Context, token string) (*Token, error) {
	reqURL := fmt.Sprintf(
		"%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		ig.graph, token,
	)

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequest("GET", reqURL, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExpiredError{Platform: ig.Platform(), Message: readBody(resp)}
	}

	var result transfer.InstagramTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresAt:   expiresAt(result.ExpiresIn),
	}, nil
}

func (ig *instagramClient) VerifyCredentials(ctx context.Context, accessToken string) (bool, error) {
	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequest("GET", fmt.Sprintf("%s/me?fields=id&access_token=%s", ig.graph, accessToken), nil)
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest:
		return false, nil
	default:
		return false, classifyStatus(ig.Platform(), resp.StatusCode, readBody(resp), nil)
	}
}

func (ig *instagramClient) AccountInfo(ctx context.Context, accessToken string) (*AccountInfo, error) {
	reqURL := fmt.Sprintf(
		"%s/me?fields=id,username,name,profile_picture_url&access_token=%s",
		ig.graph, accessToken,
	)

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequest("GET", reqURL, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(ig.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	var result transfer.InstagramUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &AccountInfo{
		ID:             result.UserID,
		Name:           result.Name,
		Username:       result.Username,
		ProfilePicture: result.ProfilePicture,
	}, nil
}

// CreatePost creates one media container per image (a carousel container on
// top when there are several) and then publishes it. Instagram has no
// text-only posts, so at least one media URL is required; content
// validation enforces that before the engine ever gets here.
func (ig *instagramClient) CreatePost(ctx context.Context, accessToken, content string, mediaURLs []string) (*PostResult, error) {
	if len(mediaURLs) == 0 {
		return nil, &ContentPolicyError{Platform: ig.Platform(), Message: "instagram posts require at least one media url"}
	}

	info, err := ig.AccountInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var containerID string
	if len(mediaURLs) == 1 {
		containerID, err = ig.createContainer(ctx, info.ID, accessToken, map[string]interface{}{
			"image_url":    mediaURLs[0],
			"caption":      content,
			"access_token": accessToken,
		})
	} else {
		containerID, err = ig.createCarousel(ctx, info.ID, accessToken, content, mediaURLs)
	}
	if err != nil {
		return nil, err
	}

	mediaID, err := ig.publishContainer(ctx, info.ID, containerID, accessToken)
	if err != nil {
		return nil, err
	}

	return &PostResult{
		ID:  mediaID,
		URL: ig.permalink(ctx, mediaID, accessToken),
	}, nil
}

func (ig *instagramClient) createCarousel(ctx context.Context, accountID, accessToken, caption string, mediaURLs []string) (string, error) {
	children := make([]string, 0, len(mediaURLs))
	for _, mediaURL := range mediaURLs {
		childID, err := ig.createContainer(ctx, accountID, accessToken, map[string]interface{}{
			"image_url":        mediaURL,
			"is_carousel_item": true,
			"access_token":     accessToken,
		})
		if err != nil {
			return "", err
		}
		children = append(children, childID)
	}

	return ig.createContainer(ctx, accountID, accessToken, map[string]interface{}{
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     children,
		"access_token": accessToken,
	})
}

func (ig *instagramClient) createContainer(ctx context.Context, accountID, accessToken string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/v21.0/%s/media", ig.graph, accountID)
	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", reqURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(ig.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	var result transfer.InstagramMediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if result.ID == "" {
		return "", &APIError{Platform: ig.Platform(), StatusCode: resp.StatusCode, Message: "no media container id returned"}
	}

	return result.ID, nil
}

func (ig *instagramClient) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"creation_id":  containerID,
		"access_token": accessToken,
	})
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/v21.0/%s/media_publish", ig.graph, accountID)
	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", reqURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(ig.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	var result transfer.InstagramMediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if result.ID == "" {
		return "", &APIError{Platform: ig.Platform(), StatusCode: resp.StatusCode, Message: "no media id returned"}
	}

	return result.ID, nil
}

// permalink is best effort; a post without a permalink is still a success.
func (ig *instagramClient) permalink(ctx context.Context, mediaID, accessToken string) string {
	reqURL := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", ig.graph, mediaID, accessToken)

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequest("GET", reqURL, nil)
	})
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var result transfer.InstagramPermalinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ""
	}
	return result.Permalink
}
