package job

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/draftwire/socialcast/internal/repository"
	"github.com/draftwire/socialcast/internal/transfer"
)

// A dispatch holding the publishing lock longer than this is presumed dead
// (worker crash between the lock and the terminal write).
const publishLeaseTimeout = 15 * time.Minute

type PublishWatchdogJob struct {
	pr repository.PostRepository
	os repository.OAuthStateRepository
}

func NewPublishWatchdogJob(pr repository.PostRepository, os repository.OAuthStateRepository) *PublishWatchdogJob {
	return &PublishWatchdogJob{
		pr: pr,
		os: os,
	}
}

// Run reclaims publishing leases that outlived their holder, and sweeps
// expired OAuth states while it is at it. A reclaimed post is marked failed
// rather than retried: the crashed worker may have reached the platform, so
// the platform outcome is unknown and republishing could duplicate it.
func (c *PublishWatchdogJob) Run() {
	ctx := context.Background()

	stuck, err := c.pr.ListStuckPublishing(ctx, time.Now().Add(-publishLeaseTimeout))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range stuck {
		details, err := json.Marshal(transfer.ErrorDetails{
			Error:     "publish lease expired, platform result unknown",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Platform:  post.Platform,
		})
		if err != nil {
			slog.Info(err.Error())
			continue
		}

		if err := c.pr.MarkFailed(ctx, post.ID, string(details)); err != nil {
			slog.Info(err.Error(), slog.Int64("post_id", post.ID))
			continue
		}
		slog.Info("reclaimed expired publish lease", slog.Int64("post_id", post.ID), slog.String("platform", post.Platform))
	}

	if err := c.os.DeleteExpired(ctx); err != nil {
		slog.Info(err.Error())
	}
}
