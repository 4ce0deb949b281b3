package service

import (
	"context"
	"sync"
	"time"

	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/platform"
)

// In-memory repository doubles. The post fake reproduces the conditional
// status transitions the SQL layer does, since the publish engine's
// at-most-once behavior depends on them.

type fakePostRepo struct {
	mu     sync.Mutex
	nextID int64
	posts  map[int64]*models.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{nextID: 1, posts: map[int64]*models.Post{}}
}

func (r *fakePostRepo) add(post *models.Post) *models.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post.ID == 0 {
		post.ID = r.nextID
		r.nextID++
	}
	r.posts[post.ID] = post
	return post
}

func (r *fakePostRepo) Create(ctx context.Context, post *models.Post) (int64, error) {
	cp := *post
	return r.add(&cp).ID, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *post
	return &cp, nil
}

func (r *fakePostRepo) List(ctx context.Context, platformName string) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, post := range r.posts {
		if platformName == "" || post.Platform == platformName {
			cp := *post
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) Update(ctx context.Context, post *models.Post) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.posts[post.ID]
	if !ok || current.Status == models.PostStatusPublished || current.Status == models.PostStatusPublishing {
		return false, nil
	}
	cp := *post
	r.posts[post.ID] = &cp
	return true, nil
}

func (r *fakePostRepo) SetStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != from {
		return false, nil
	}
	post.Status = to
	return true, nil
}

func (r *fakePostRepo) MarkPublishing(ctx context.Context, id int64, fromStatus string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok || post.Status != fromStatus {
		return false, nil
	}
	now := time.Now()
	post.Status = models.PostStatusPublishing
	post.PublishingStartedAt = &now
	return true, nil
}

func (r *fakePostRepo) RevertPublishing(ctx context.Context, id int64, toStatus string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post, ok := r.posts[id]; ok && post.Status == models.PostStatusPublishing {
		post.Status = toStatus
		post.PublishingStartedAt = nil
	}
	return nil
}

func (r *fakePostRepo) MarkPublished(ctx context.Context, id, socialAccountID int64, platformPostID, platformPostURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil
	}
	now := time.Now()
	post.Status = models.PostStatusPublished
	post.SocialAccountID = &socialAccountID
	post.PlatformPostID = platformPostID
	post.PlatformPostURL = platformPostURL
	post.PublishedAt = &now
	post.PublishingStartedAt = nil
	post.ErrorDetails = ""
	return nil
}

func (r *fakePostRepo) MarkFailed(ctx context.Context, id int64, errorDetails string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if post, ok := r.posts[id]; ok {
		post.Status = models.PostStatusFailed
		post.ErrorDetails = errorDetails
		post.PublishingStartedAt = nil
	}
	return nil
}

func (r *fakePostRepo) ListStuckPublishing(ctx context.Context, startedBefore time.Time) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, post := range r.posts {
		if post.Status == models.PostStatusPublishing && post.PublishingStartedAt != nil && post.PublishingStartedAt.Before(startedBefore) {
			cp := *post
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

type fakeSocialAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*models.SocialAccount
}

func newFakeSocialAccountRepo() *fakeSocialAccountRepo {
	return &fakeSocialAccountRepo{nextID: 1, accounts: map[int64]*models.SocialAccount{}}
}

func (r *fakeSocialAccountRepo) add(acc *models.SocialAccount) *models.SocialAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc.ID == 0 {
		acc.ID = r.nextID
		r.nextID++
	}
	r.accounts[acc.ID] = acc
	return acc
}

func (r *fakeSocialAccountRepo) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	for _, existing := range r.accounts {
		if existing.Platform == sa.Platform && existing.AccountID == sa.AccountID {
			sa.ID = existing.ID
			r.accounts[existing.ID] = sa
			r.mu.Unlock()
			return existing.ID, nil
		}
	}
	r.mu.Unlock()
	return r.add(sa).ID, nil
}

func (r *fakeSocialAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *acc
	return &cp, nil
}

func (r *fakeSocialAccountRepo) GetActiveByPlatform(ctx context.Context, platformName string) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.Platform == platformName && acc.AccountStatus == models.AccountStatusActive {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeSocialAccountRepo) List(ctx context.Context) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, acc := range r.accounts {
		cp := *acc
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeSocialAccountRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt *time.Time, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[id]; ok {
		acc.AccessToken = accessToken
		if refreshToken != "" {
			acc.RefreshToken = refreshToken
		}
		acc.TokenExpiresAt = expiresAt
		acc.TokenScope = scope
		acc.AccountStatus = models.AccountStatusActive
		acc.ErrorMessage = ""
	}
	return nil
}

func (r *fakeSocialAccountRepo) SetStatus(ctx context.Context, id int64, status, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[id]; ok {
		acc.AccountStatus = status
		acc.ErrorMessage = errorMessage
	}
	return nil
}

func (r *fakeSocialAccountRepo) UpdateProfile(ctx context.Context, id int64, name, username, profilePicture string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[id]; ok {
		acc.AccountName = name
		acc.AccountUsername = username
		acc.ProfilePicture = profilePicture
	}
	return nil
}

func (r *fakeSocialAccountRepo) MarkVerified(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[id]; ok {
		now := time.Now()
		acc.LastVerifiedAt = &now
		acc.ErrorMessage = ""
	}
	return nil
}

func (r *fakeSocialAccountRepo) UpdateRateLimit(ctx context.Context, id int64, remaining *int, resetAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[id]; ok {
		acc.RateLimitRemaining = remaining
		acc.RateLimitResetAt = resetAt
	}
	return nil
}

func (r *fakeSocialAccountRepo) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
	return nil
}

type fakePublishAttemptRepo struct {
	mu       sync.Mutex
	attempts []*models.PublishAttempt
}

func (r *fakePublishAttemptRepo) Create(ctx context.Context, pa *models.PublishAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *pa
	cp.ID = int64(len(r.attempts) + 1)
	r.attempts = append(r.attempts, &cp)
	return cp.ID, nil
}

func (r *fakePublishAttemptRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.PublishAttempt
	for _, a := range r.attempts {
		if a.PostID == postID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeOAuthStateRepo struct {
	mu     sync.Mutex
	states map[string]*models.OAuthState
}

func newFakeOAuthStateRepo() *fakeOAuthStateRepo {
	return &fakeOAuthStateRepo{states: map[string]*models.OAuthState{}}
}

func (r *fakeOAuthStateRepo) Create(ctx context.Context, state *models.OAuthState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *state
	r.states[state.State] = &cp
	return nil
}

func (r *fakeOAuthStateRepo) Consume(ctx context.Context, state, platformName string) (*models.OAuthState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.states[state]
	if !ok || stored.Platform != platformName || !stored.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	delete(r.states, state)
	return stored, nil
}

func (r *fakeOAuthStateRepo) DeleteExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, stored := range r.states {
		if !stored.ExpiresAt.After(time.Now()) {
			delete(r.states, key)
		}
	}
	return nil
}

// fakeClient is a scriptable platform.Client. Unset hooks answer with
// benign defaults.
type fakeClient struct {
	platformName    string
	authorizeFn     func(req platform.AuthRequest) string
	exchangeFn      func(ctx context.Context, code, redirectURI, codeVerifier string) (*platform.Token, error)
	refreshFn       func(ctx context.Context, token string) (*platform.Token, error)
	verifyFn        func(ctx context.Context, accessToken string) (bool, error)
	accountInfoFn   func(ctx context.Context, accessToken string) (*platform.AccountInfo, error)
	createPostFn    func(ctx context.Context, accessToken, content string, mediaURLs []string) (*platform.PostResult, error)
	createPostCalls int
}

func (f *fakeClient) Platform() string {
	return f.platformName
}

func (f *fakeClient) AuthorizationURL(req platform.AuthRequest) string {
	if f.authorizeFn != nil {
		return f.authorizeFn(req)
	}
	return "https://" + f.platformName + ".example/authorize?state=" + req.State
}

func (f *fakeClient) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*platform.Token, error) {
	if f.exchangeFn != nil {
		return f.exchangeFn(ctx, code, redirectURI, codeVerifier)
	}
	return &platform.Token{AccessToken: "access-" + code}, nil
}

func (f *fakeClient) RefreshToken(ctx context.Context, token string) (*platform.Token, error) {
	if f.refreshFn != nil {
		return f.refreshFn(ctx, token)
	}
	return &platform.Token{AccessToken: "refreshed"}, nil
}

func (f *fakeClient) VerifyCredentials(ctx context.Context, accessToken string) (bool, error) {
	if f.verifyFn != nil {
		return f.verifyFn(ctx, accessToken)
	}
	return true, nil
}

func (f *fakeClient) AccountInfo(ctx context.Context, accessToken string) (*platform.AccountInfo, error) {
	if f.accountInfoFn != nil {
		return f.accountInfoFn(ctx, accessToken)
	}
	return &platform.AccountInfo{ID: "acct-1", Name: "Fake Account", Username: "fake"}, nil
}

func (f *fakeClient) CreatePost(ctx context.Context, accessToken, content string, mediaURLs []string) (*platform.PostResult, error) {
	f.createPostCalls++
	if f.createPostFn != nil {
		return f.createPostFn(ctx, accessToken, content, mediaURLs)
	}
	return &platform.PostResult{ID: "post-1", URL: "https://" + f.platformName + ".example/post-1"}, nil
}
