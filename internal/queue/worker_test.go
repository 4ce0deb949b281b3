package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/service"
)

type stubPublisher struct {
	err   error
	calls []int64
}

func (s *stubPublisher) Publish(ctx context.Context, postID int64) (*models.Post, error) {
	s.calls = append(s.calls, postID)
	return nil, s.err
}

func publishTask(t *testing.T, postID int64) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	require.NoError(t, err)
	return asynq.NewTask(TaskTypePublishPost, payload)
}

func TestHandlePublishPostTask(t *testing.T) {
	pub := &stubPublisher{}
	worker := NewWorker(pub)

	err := worker.HandlePublishPostTask(context.Background(), publishTask(t, 7))
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, pub.calls)
}

func TestHandlePublishPostTaskSettledOutcomes(t *testing.T) {
	// Outcomes another actor already settled complete the task so asynq
	// never redelivers them.
	for _, cause := range []error{
		service.ErrPostNotFound,
		service.ErrAlreadyPublished,
		service.ErrPublishInFlight,
		errors.New("twitter: api error (status 500)"),
	} {
		worker := NewWorker(&stubPublisher{err: cause})
		assert.NoError(t, worker.HandlePublishPostTask(context.Background(), publishTask(t, 9)))
	}
}

func TestHandlePublishPostTaskBadPayload(t *testing.T) {
	worker := NewWorker(&stubPublisher{})
	err := worker.HandlePublishPostTask(context.Background(), asynq.NewTask(TaskTypePublishPost, []byte("not json")))
	assert.Error(t, err)
}
