package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	config "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/transfer"
	"golang.org/x/oauth2"
)

const (
	linkedinAuthURL    = "https://www.linkedin.com/oauth/v2/authorization"
	linkedinTokenURL   = "https://www.linkedin.com/oauth/v2/accessToken"
	linkedinAPIURL     = "https://api.linkedin.com/v2"
	linkedinScopes     = "openid profile w_member_social"
	linkedinPostURLFmt = "https://www.linkedin.com/feed/update/%s"
)

type linkedinClient struct {
	cfg config.Config
	api string
}

func NewLinkedinClient(cfg config.Config) Client {
	return &linkedinClient{cfg: cfg, api: linkedinAPIURL}
}

func (l *linkedinClient) Platform() string {
	return "linkedin"
}

func (l *linkedinClient) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     l.cfg.LinkedinClientID,
		ClientSecret: l.cfg.LinkedinClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Split(linkedinScopes, " "),
		Endpoint: oauth2.Endpoint{
			AuthURL:   linkedinAuthURL,
			TokenURL:  linkedinTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (l *linkedinClient) AuthorizationURL(req AuthRequest) string {
	return l.oauthConfig(req.RedirectURI).AuthCodeURL(req.State)
}

func (l *linkedinClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*Token, error) {
	conf := l.oauthConfig(redirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, &AuthenticationError{Platform: l.Platform(), Message: err.Error()}
	}

	return normalizeOAuth2Token(tok), nil
}

func (l *linkedinClient) RefreshToken(ctx context.Context, token string) (*Token, error) {
	conf := l.oauthConfig(l.cfg.LinkedinRedirectURI)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token}).Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, &TokenExpiredError{Platform: l.Platform(), Message: err.Error()}
	}

	return normalizeOAuth2Token(tok), nil
}

func (l *linkedinClient) VerifyCredentials(ctx context.Context, accessToken string) (bool, error) {
	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("GET", l.api+"/userinfo", nil)
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
		return false, classifyStatus(l.Platform(), resp.StatusCode, readBody(resp), nil)
	}
}

func (l *linkedinClient) AccountInfo(ctx context.Context, accessToken string) (*AccountInfo, error) {
	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("GET", l.api+"/userinfo", nil)
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
		return nil, classifyStatus(l.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	var result transfer.LinkedinUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &AccountInfo{
		ID:             result.Sub,
		Name:           result.Name,
		Username:       result.GivenName,
		ProfilePicture: result.Picture,
	}, nil
}

// CreatePost publishes a text share as the connected member via ugcPosts.
// LinkedIn returns the share URN in the x-restli-id header.
func (l *linkedinClient) CreatePost(ctx context.Context, accessToken, content string, mediaURLs []string) (*PostResult, error) {
	info, err := l.AccountInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	share := transfer.LinkedinShareRequest{
		Author:         fmt.Sprintf("urn:li:person:%s", info.ID),
		LifecycleState: "PUBLISHED",
	}
	share.SpecificContent.ShareContent.ShareCommentary.Text = content
	share.SpecificContent.ShareContent.ShareMediaCategory = "NONE"
	share.Visibility.MemberNetworkVisibility = "PUBLIC"

	payload, err := json.Marshal(share)
	if err != nil {
		return nil, err
	}

	resp, err := doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", l.api+"/ugcPosts", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(l.Platform(), resp.StatusCode, readBody(resp), nil)
	}

	urn := resp.Header.Get("x-restli-id")
	if urn == "" {
		var result transfer.LinkedinShareResponse
		if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
			urn = result.ID
		}
	}
	if urn == "" {
		return nil, &APIError{Platform: l.Platform(), StatusCode: resp.StatusCode, Message: "no share urn returned"}
	}

	return &PostResult{
		ID:  urn,
		URL: fmt.Sprintf(linkedinPostURLFmt, urn),
	}, nil
}
