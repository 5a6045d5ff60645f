package tasks

import (
	"context"

	"github.com/hibiken/asynq"
)

// TaskEnqueuer is the part of *asynq.Client the HTTP side needs; tests swap
// in a recorder.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
