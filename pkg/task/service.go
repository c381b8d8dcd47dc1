package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

//go:generate mockgen -source=service.go -destination=mock_enqueuer.go -package=task

// Enqueuer hands tasks to the queue. Sweeps scheduled by several replicas
// carry a task ID, so a duplicate surfaces as asynq.ErrTaskIDConflict.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type clientEnqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) Enqueuer {
	return &clientEnqueuer{client: client}
}

func (e *clientEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := e.client.EnqueueContext(ctx, t, opts...)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		zap.L().Debug("[Asynq] task already queued", zap.String("task_type", t.Type()))
		return nil, fmt.Errorf("enqueue %s: %w", t.Type(), err)
	case err != nil:
		zap.L().Warn("[Asynq] enqueue failed", zap.String("task_type", t.Type()), zap.Error(err))
		return nil, fmt.Errorf("enqueue %s: %w", t.Type(), err)
	}

	zap.L().Debug("[Asynq] task queued",
		zap.String("task_type", t.Type()),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return info, nil
}
