package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/draftwire/socialcast/internal/content"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/platform"
	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/internal/transfer"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrAlreadyPublished = errors.New("post already published")
	ErrPublishInFlight  = errors.New("publish already in flight")
	ErrNoActiveAccount  = errors.New("no active account connected for this platform")
)

type PublishService interface {
	Publish(ctx context.Context, postID int64) (*models.Post, error)
}

type publishService struct {
	pr      repository.PostRepository
	sa      repository.SocialAccountRepository
	pa      repository.PublishAttemptRepository
	tokens  TokenService
	clients platform.Registry
}

func NewPublishService(
	pr repository.PostRepository,
	sa repository.SocialAccountRepository,
	pa repository.PublishAttemptRepository,
	tokens TokenService,
	clients platform.Registry) PublishService {
	return &publishService{
		pr:      pr,
		sa:      sa,
		pa:      pa,
		tokens:  tokens,
		clients: clients,
	}
}

// Publish dispatches one post to its platform at most once. The publishing
// status doubles as the lock: it is taken with a conditional update keyed on
// the status the caller observed, so of any number of concurrent calls
// exactly one reaches the platform.
func (s *publishService) Publish(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}

	switch post.Status {
	case models.PostStatusPublished:
		return post, ErrAlreadyPublished
	case models.PostStatusPublishing:
		return post, ErrPublishInFlight
	}

	// Hard precondition: constraint violations block the publish without
	// taking the lock or touching the account.
	if err := content.Validate(post.Platform, post.Content, post.Hashtags, post.MediaURLs); err != nil {
		return post, err
	}

	locked, err := s.pr.MarkPublishing(ctx, postID, post.Status)
	if err != nil {
		return post, err
	}
	if !locked {
		return post, ErrPublishInFlight
	}
	priorStatus := post.Status
	post.Status = models.PostStatusPublishing

	account, err := s.sa.GetActiveByPlatform(ctx, post.Platform)
	if err != nil {
		s.revert(ctx, post, priorStatus)
		return post, err
	}
	if account == nil {
		// Operator configuration problem, not a post failure: release the
		// lock and leave the post exactly as it was.
		s.revert(ctx, post, priorStatus)
		return post, ErrNoActiveAccount
	}

	accessToken, err := s.tokens.EnsureValid(ctx, account)
	if err != nil {
		if errors.Is(err, ErrReconnectRequired) {
			failErr := fmt.Errorf("account %d (%s): %w", account.ID, account.Platform, err)
			s.fail(ctx, post, account, failErr)
			return post, failErr
		}
		s.revert(ctx, post, priorStatus)
		return post, err
	}

	client, ok := s.clients.Get(post.Platform)
	if !ok {
		s.revert(ctx, post, priorStatus)
		return post, fmt.Errorf("no client for platform %q", post.Platform)
	}

	rendered := content.Render(post.Content, post.Hashtags)
	result, err := client.CreatePost(ctx, accessToken, rendered, post.MediaURLs)
	if err != nil {
		if platform.IsTokenExpired(err) {
			s.sa.SetStatus(ctx, account.ID, models.AccountStatusExpired,
				fmt.Sprintf("publish rejected the token: %v; reconnect the account", err))
		}
		s.fail(ctx, post, account, err)
		return post, err
	}

	if err := s.pr.MarkPublished(ctx, post.ID, account.ID, result.ID, result.URL); err != nil {
		// The platform post exists; a failed status write is a logged,
		// reconcilable inconsistency rather than a publish failure.
		slog.Error("post published but status write failed", "post_id", post.ID, "platform_post_id", result.ID, "error", err.Error())
	}

	if result.RateLimitRemaining != nil || result.RateLimitResetAt != nil {
		if err := s.sa.UpdateRateLimit(ctx, account.ID, result.RateLimitRemaining, result.RateLimitResetAt); err != nil {
			slog.Info(err.Error())
		}
	}

	s.record(ctx, post, account, "")

	now := time.Now()
	post.Status = models.PostStatusPublished
	post.PlatformPostID = result.ID
	post.PlatformPostURL = result.URL
	post.PublishedAt = &now
	post.SocialAccountID = &account.ID
	post.ErrorDetails = ""
	return post, nil
}

func (s *publishService) revert(ctx context.Context, post *models.Post, toStatus string) {
	if err := s.pr.RevertPublishing(ctx, post.ID, toStatus); err != nil {
		slog.Error("failed to release publish lock", "post_id", post.ID, "error", err.Error())
		return
	}
	post.Status = toStatus
}

func (s *publishService) fail(ctx context.Context, post *models.Post, account *models.SocialAccount, cause error) {
	details := transfer.ErrorDetails{
		Error:     cause.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Platform:  post.Platform,
	}
	if account != nil {
		details.AccountID = account.ID
	}

	encoded, err := json.Marshal(details)
	if err != nil {
		encoded = []byte(fmt.Sprintf(`{"error":%q}`, cause.Error()))
	}

	if err := s.pr.MarkFailed(ctx, post.ID, string(encoded)); err != nil {
		slog.Error("failed to record publish failure", "post_id", post.ID, "error", err.Error())
	}
	post.Status = models.PostStatusFailed
	post.ErrorDetails = string(encoded)

	s.record(ctx, post, account, cause.Error())
}

func (s *publishService) record(ctx context.Context, post *models.Post, account *models.SocialAccount, errorMessage string) {
	attempt := models.PublishAttempt{
		PostID:       post.ID,
		Platform:     post.Platform,
		Success:      errorMessage == "",
		ErrorMessage: errorMessage,
	}
	if account != nil {
		attempt.SocialAccountID = account.ID
	}

	if _, err := s.pa.Create(ctx, &attempt); err != nil {
		slog.Info(err.Error())
	}
}
