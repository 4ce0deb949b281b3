package models

import (
	"time"

	"github.com/lib/pq"
)

const (
	PostStatusDraft      = "draft"
	PostStatusQueued     = "queued"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

type Post struct {
	ID                  int64          `db:"id" json:"id"`
	Platform            string         `db:"platform" json:"platform"`
	Content             string         `db:"content" json:"content"`
	Hashtags            pq.StringArray `db:"hashtags" json:"hashtags"`
	MediaURLs           pq.StringArray `db:"media_urls" json:"media_urls"`
	Status              string         `db:"status" json:"status"`
	ScheduledAt         *time.Time     `db:"scheduled_at" json:"scheduled_at"`
	AutoPublish         bool           `db:"auto_publish" json:"auto_publish"`
	SourceType          string         `db:"source_type" json:"source_type"`
	SourceID            string         `db:"source_id" json:"source_id"`
	SourceURL           string         `db:"source_url" json:"source_url"`
	PlatformPostID      string         `db:"platform_post_id" json:"platform_post_id"`
	PlatformPostURL     string         `db:"platform_post_url" json:"platform_post_url"`
	PublishedAt         *time.Time     `db:"published_at" json:"published_at"`
	SocialAccountID     *int64         `db:"social_account_id" json:"social_account_id"`
	ErrorDetails        string         `db:"error_details" json:"error_details"`
	PublishingStartedAt *time.Time     `db:"publishing_started_at" json:"publishing_started_at"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}
