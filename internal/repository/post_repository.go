package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/draftwire/socialcast/internal/models"
	"github.com/lib/pq"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, platform string) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) (bool, error)
	SetStatus(ctx context.Context, id int64, from, to string) (bool, error)
	MarkPublishing(ctx context.Context, id int64, fromStatus string) (bool, error)
	RevertPublishing(ctx context.Context, id int64, toStatus string) error
	MarkPublished(ctx context.Context, id, socialAccountID int64, platformPostID, platformPostURL string) error
	MarkFailed(ctx context.Context, id int64, errorDetails string) error
	ListStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, platform, content, hashtags, media_urls, status, scheduled_at,
	auto_publish, source_type, source_id, source_url, platform_post_id, platform_post_url,
	published_at, social_account_id, error_details, publishing_started_at, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.Platform, &post.Content, &post.Hashtags, &post.MediaURLs,
		&post.Status, &post.ScheduledAt, &post.AutoPublish, &post.SourceType, &post.SourceID,
		&post.SourceURL, &post.PlatformPostID, &post.PlatformPostURL, &post.PublishedAt,
		&post.SocialAccountID, &post.ErrorDetails, &post.PublishingStartedAt,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (platform, content, hashtags, media_urls, status, scheduled_at,
			auto_publish, source_type, source_id, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		post.Platform,
		post.Content,
		pq.Array([]string(post.Hashtags)),
		pq.Array([]string(post.MediaURLs)),
		post.Status,
		post.ScheduledAt,
		post.AutoPublish,
		post.SourceType,
		post.SourceID,
		post.SourceURL,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) List(ctx context.Context, platform string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts`
	args := []interface{}{}

	if platform != "" {
		query += ` WHERE platform = $1`
		args = append(args, platform)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return posts, nil
}

// Update rewrites the editable fields of a post. Published posts are
// immutable; the guard is in the statement itself so no read-modify-write
// race can touch one. Returns false when nothing was updated.
func (r *postRepository) Update(ctx context.Context, post *models.Post) (bool, error) {
	query := `
		UPDATE posts
		SET content = $2,
			hashtags = $3,
			media_urls = $4,
			scheduled_at = $5,
			auto_publish = $6,
			status = $7,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status <> 'published' AND status <> 'publishing'
	`
	result, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.Content,
		pq.Array([]string(post.Hashtags)),
		pq.Array([]string(post.MediaURLs)),
		post.ScheduledAt,
		post.AutoPublish,
		post.Status,
	)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// SetStatus transitions a post from one exact status to another; it reports
// whether the transition happened. Used for the manual failed -> draft reset.
func (r *postRepository) SetStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// MarkPublishing is the publish lock: a single conditional update that only
// succeeds when the post still has the status the caller observed. Exactly
// one of any number of concurrent callers wins.
func (r *postRepository) MarkPublishing(ctx context.Context, id int64, fromStatus string) (bool, error) {
	query := `
		UPDATE posts
		SET status = $3,
			publishing_started_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, fromStatus, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

// RevertPublishing releases the lock without recording an attempt, restoring
// the status the post had before. Used when no account is configured.
func (r *postRepository) RevertPublishing(ctx context.Context, id int64, toStatus string) error {
	query := `
		UPDATE posts
		SET status = $2,
			publishing_started_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3
	`
	_, err := r.db.ExecContext(ctx, query, id, toStatus, models.PostStatusPublishing)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkPublished(ctx context.Context, id, socialAccountID int64, platformPostID, platformPostURL string) error {
	query := `
		UPDATE posts
		SET status = $2,
			platform_post_id = $3,
			platform_post_url = $4,
			social_account_id = $5,
			published_at = CURRENT_TIMESTAMP,
			publishing_started_at = NULL,
			error_details = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusPublished, platformPostID, platformPostURL, socialAccountID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, errorDetails string) error {
	query := `
		UPDATE posts
		SET status = $2,
			error_details = $3,
			publishing_started_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, models.PostStatusFailed, errorDetails)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ListStuckPublishing returns posts whose publishing lease started before
// the given cutoff. The watchdog reclaims them.
func (r *postRepository) ListStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + `
		FROM posts
		WHERE status = $1 AND publishing_started_at < $2`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusPublishing, startedBefore)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return posts, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1 AND status <> 'published'`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
