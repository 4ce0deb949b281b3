package models

import "time"

// PublishAttempt is an append-only audit row written for every dispatch of a
// post to a platform, successful or not.
type PublishAttempt struct {
	ID              int64     `db:"id" json:"id"`
	PostID          int64     `db:"post_id" json:"post_id"`
	SocialAccountID int64     `db:"social_account_id" json:"social_account_id"`
	Platform        string    `db:"platform" json:"platform"`
	Success         bool      `db:"success" json:"success"`
	ErrorMessage    string    `db:"error_message" json:"error_message"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
