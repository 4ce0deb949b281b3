package transfer

type PostCreation struct {
	Platform    string   `json:"platform"`
	Content     string   `json:"content"`
	Hashtags    []string `json:"hashtags"`
	MediaURLs   []string `json:"media_urls"`
	ScheduledAt string   `json:"scheduled_at"`
	AutoPublish bool     `json:"auto_publish"`
	SourceType  string   `json:"source_type"`
	SourceID    string   `json:"source_id"`
	SourceURL   string   `json:"source_url"`
}

type PostUpdate struct {
	Content     *string  `json:"content"`
	Hashtags    []string `json:"hashtags"`
	MediaURLs   []string `json:"media_urls"`
	ScheduledAt *string  `json:"scheduled_at"`
	AutoPublish *bool    `json:"auto_publish"`
}

// ErrorDetails is the structured failure record persisted on a post.
type ErrorDetails struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	Platform  string `json:"platform"`
	AccountID int64  `json:"account_id,omitempty"`
}
