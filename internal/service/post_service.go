package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/draftwire/socialcast/internal/content"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/internal/transfer"
)

// ErrPostImmutable guards the published terminal state: content, hashtags
// and status of a published post can never change again.
var ErrPostImmutable = errors.New("published posts are immutable")

type PostService interface {
	Create(ctx context.Context, pc *transfer.PostCreation) (*models.Post, time.Duration, error)
	Update(ctx context.Context, postID int64, pu *transfer.PostUpdate) (*models.Post, time.Duration, error)
	Get(ctx context.Context, postID int64) (*models.Post, error)
	List(ctx context.Context, platformFilter string) ([]*models.Post, error)
	ResetFailed(ctx context.Context, postID int64) error
	Remove(ctx context.Context, postID int64) error
	History(ctx context.Context, postID int64) ([]*models.PublishAttempt, error)
}

type postService struct {
	pr repository.PostRepository
	pa repository.PublishAttemptRepository
}

func NewPostService(pr repository.PostRepository, pa repository.PublishAttemptRepository) PostService {
	return &postService{
		pr: pr,
		pa: pa,
	}
}

// Create stores a new draft. A post with a schedule and auto-publish set
// becomes "scheduled"; the returned delay tells the caller when to enqueue
// its dispatch.
func (s *postService) Create(ctx context.Context, pc *transfer.PostCreation) (*models.Post, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, 0, err
	}

	if err := content.Validate(pc.Platform, pc.Content, pc.Hashtags, pc.MediaURLs); err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	scheduledAt, err := parseScheduledAt(pc.ScheduledAt)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	status := models.PostStatusDraft
	if scheduledAt != nil && pc.AutoPublish {
		status = models.PostStatusScheduled
	}

	post := models.Post{
		Platform:    pc.Platform,
		Content:     pc.Content,
		Hashtags:    pc.Hashtags,
		MediaURLs:   pc.MediaURLs,
		Status:      status,
		ScheduledAt: scheduledAt,
		AutoPublish: pc.AutoPublish,
		SourceType:  pc.SourceType,
		SourceID:    pc.SourceID,
		SourceURL:   pc.SourceURL,
	}

	id, err := s.pr.Create(ctx, &post)
	if err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = id

	return &post, dispatchDelay(post.Status, scheduledAt), nil
}

func (s *postService) Update(ctx context.Context, postID int64, pu *transfer.PostUpdate) (*models.Post, time.Duration, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, 0, err
	}
	if post == nil {
		return nil, 0, ErrPostNotFound
	}
	if post.Status == models.PostStatusPublished {
		return nil, 0, ErrPostImmutable
	}
	if post.Status == models.PostStatusPublishing {
		return nil, 0, ErrPublishInFlight
	}

	if pu.Content != nil {
		post.Content = *pu.Content
	}
	if pu.Hashtags != nil {
		post.Hashtags = pu.Hashtags
	}
	if pu.MediaURLs != nil {
		post.MediaURLs = pu.MediaURLs
	}
	if pu.AutoPublish != nil {
		post.AutoPublish = *pu.AutoPublish
	}
	if pu.ScheduledAt != nil {
		scheduledAt, err := parseScheduledAt(*pu.ScheduledAt)
		if err != nil {
			return nil, 0, err
		}
		post.ScheduledAt = scheduledAt
	}

	if err := content.Validate(post.Platform, post.Content, post.Hashtags, post.MediaURLs); err != nil {
		return nil, 0, err
	}

	if post.ScheduledAt != nil && post.AutoPublish {
		post.Status = models.PostStatusScheduled
	} else if post.Status == models.PostStatusScheduled {
		post.Status = models.PostStatusDraft
	}

	updated, err := s.pr.Update(ctx, post)
	if err != nil {
		return nil, 0, err
	}
	if !updated {
		// The guarded statement refused the write: the post reached a
		// terminal or in-flight state between our read and the update.
		return nil, 0, ErrPostImmutable
	}

	return post, dispatchDelay(post.Status, post.ScheduledAt), nil
}

func (s *postService) Get(ctx context.Context, postID int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrPostNotFound
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, platformFilter string) ([]*models.Post, error) {
	return s.pr.List(ctx, platformFilter)
}

// ResetFailed is the only path out of the failed state: an explicit operator
// action returning the post to draft for another attempt.
func (s *postService) ResetFailed(ctx context.Context, postID int64) error {
	reset, err := s.pr.SetStatus(ctx, postID, models.PostStatusFailed, models.PostStatusDraft)
	if err != nil {
		return err
	}
	if !reset {
		return errors.New("post is not in the failed state")
	}
	return nil
}

func (s *postService) Remove(ctx context.Context, postID int64) error {
	return s.pr.Remove(ctx, postID)
}

func (s *postService) History(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	return s.pa.ListByPostID(ctx, postID)
}

func parseScheduledAt(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduled_at, want RFC3339: %w", err)
	}
	return &t, nil
}

func dispatchDelay(status string, scheduledAt *time.Time) time.Duration {
	if status != models.PostStatusScheduled || scheduledAt == nil {
		return 0
	}
	delay := time.Until(*scheduledAt)
	if delay < 0 {
		delay = 0
	}
	return delay
}
