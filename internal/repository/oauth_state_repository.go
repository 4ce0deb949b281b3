package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/draftwire/socialcast/internal/models"
)

type OAuthStateRepository interface {
	Create(ctx context.Context, state *models.OAuthState) error
	Consume(ctx context.Context, state, platform string) (*models.OAuthState, error)
	DeleteExpired(ctx context.Context) error
}

type oauthStateRepository struct {
	db *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{db: db}
}

func (r *oauthStateRepository) Create(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state, platform, code_verifier, redirect_uri, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, state.State, state.Platform, state.CodeVerifier, state.RedirectURI, state.ExpiresAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Consume atomically deletes and returns the matching unexpired state row.
// A second callback with the same state, a platform mismatch, or an expired
// row all come back as (nil, nil): the callback must be rejected.
func (r *oauthStateRepository) Consume(ctx context.Context, state, platform string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state = $1 AND platform = $2 AND expires_at > $3
		RETURNING state, platform, code_verifier, redirect_uri, created_at, expires_at
	`

	var st models.OAuthState
	err := r.db.QueryRowContext(ctx, query, state, platform, time.Now()).
		Scan(&st.State, &st.Platform, &st.CodeVerifier, &st.RedirectURI, &st.CreatedAt, &st.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &st, nil
}

func (r *oauthStateRepository) DeleteExpired(ctx context.Context) error {
	query := `DELETE FROM oauth_states WHERE expires_at <= $1`
	_, err := r.db.ExecContext(ctx, query, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
