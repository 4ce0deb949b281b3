package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/draftwire/socialcast/internal/models"
)

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	GetActiveByPlatform(ctx context.Context, platform string) (*models.SocialAccount, error)
	List(ctx context.Context) ([]*models.SocialAccount, error)
	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time, scope string) error
	SetStatus(ctx context.Context, id int64, status, errorMessage string) error
	UpdateProfile(ctx context.Context, id int64, name, username, profilePicture string) error
	MarkVerified(ctx context.Context, id int64) error
	UpdateRateLimit(ctx context.Context, id int64, remaining *int, resetAt *time.Time) error
	Remove(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, platform, account_id, account_name, account_username,
	profile_picture_url, access_token, refresh_token, token_expires_at, token_scope,
	account_status, rate_limit_remaining, rate_limit_reset_at, last_verified_at,
	error_message, created_at, updated_at`

func scanSocialAccount(row interface{ Scan(...interface{}) error }) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.Platform, &sa.AccountID, &sa.AccountName,
		&sa.AccountUsername, &sa.ProfilePicture, &sa.AccessToken, &sa.RefreshToken,
		&sa.TokenExpiresAt, &sa.TokenScope, &sa.AccountStatus, &sa.RateLimitRemaining,
		&sa.RateLimitResetAt, &sa.LastVerifiedAt, &sa.ErrorMessage, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// Upsert inserts the account or, when (platform, account_id) already exists,
// refreshes its tokens, profile fields and status in place. Connecting the
// same external identity twice can never create a second row.
func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts (
			platform,
			account_id,
			account_name,
			account_username,
			profile_picture_url,
			access_token,
			refresh_token,
			token_expires_at,
			token_scope,
			account_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (platform, account_id) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			account_username = EXCLUDED.account_username,
			profile_picture_url = EXCLUDED.profile_picture_url,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			token_scope = EXCLUDED.token_scope,
			account_status = EXCLUDED.account_status,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.AccountUsername,
		sa.ProfilePicture,
		sa.AccessToken,
		sa.RefreshToken,
		sa.TokenExpiresAt,
		sa.TokenScope,
		sa.AccountStatus,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sa, nil
}

// GetActiveByPlatform resolves the publishing account for a platform: the
// most recently updated active row. Selection is deliberate policy, not
// query-order luck.
func (r *socialAccountRepository) GetActiveByPlatform(ctx context.Context, platform string) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + `
		FROM social_accounts
		WHERE platform = $1 AND account_status = $2
		ORDER BY updated_at DESC
		LIMIT 1`

	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, platform, models.AccountStatusActive))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return sa, nil
}

func (r *socialAccountRepository) List(ctx context.Context) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts ORDER BY platform, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return accounts, nil
}

// UpdateTokens persists a rotated credential set, reactivating the account
// and clearing any previous diagnostic. Empty refresh token / scope keep the
// stored values so platforms that do not rotate them do not wipe them.
func (r *socialAccountRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time, scope string) error {
	query := `
		UPDATE social_accounts
		SET access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			token_scope = COALESCE(NULLIF($5, ''), token_scope),
			account_status = $6,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt, scope, models.AccountStatusActive)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) SetStatus(ctx context.Context, id int64, status, errorMessage string) error {
	query := `
		UPDATE social_accounts
		SET account_status = $2,
			error_message = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, status, errorMessage)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) UpdateProfile(ctx context.Context, id int64, name, username, profilePicture string) error {
	query := `
		UPDATE social_accounts
		SET account_name = $2,
			account_username = $3,
			profile_picture_url = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, name, username, profilePicture)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) MarkVerified(ctx context.Context, id int64) error {
	query := `
		UPDATE social_accounts
		SET last_verified_at = CURRENT_TIMESTAMP,
			error_message = '',
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) UpdateRateLimit(ctx context.Context, id int64, remaining *int, resetAt *time.Time) error {
	query := `
		UPDATE social_accounts
		SET rate_limit_remaining = $2,
			rate_limit_reset_at = $3,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, remaining, resetAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM social_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
