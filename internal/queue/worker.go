package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/draftwire/socialcast/internal/service"
)

type Worker struct {
	publisher service.PublishService
}

func NewWorker(publisher service.PublishService) *Worker {
	return &Worker{publisher: publisher}
}

// HandlePublishPostTask runs a scheduled dispatch. Outcomes that another
// actor already settled (the post was published or deleted meanwhile, or a
// publish is in flight) are not worth retrying, so they complete the task.
func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	_, err := w.publisher.Publish(ctx, payload.PostID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPostNotFound),
			errors.Is(err, service.ErrAlreadyPublished),
			errors.Is(err, service.ErrPublishInFlight):
			slog.Info("publish task skipped", slog.Int64("post_id", payload.PostID), slog.String("reason", err.Error()))
			return nil
		}
		slog.Info(err.Error(), slog.Int64("post_id", payload.PostID))
		// The publish engine already recorded the failure; asynq must not
		// retry a dispatch the engine marked failed.
		return nil
	}

	return nil
}
