package task

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/phrazzld/render-api/internal/domain"
)

// Common errors returned by the Queue.
var (
	ErrQueueClosed = errors.New("task queue is closed")
	ErrQueueFull   = errors.New("task queue is full")
)

// Work is one unit of task execution: it performs the upstream call to a
// terminal outcome and returns the result document on success or an error on
// failure. Work must be idempotent on failure; the queue runs it at most
// once and converts a panic or error into the task's failed state.
type Work func(ctx context.Context) (json.RawMessage, error)

// Dispatcher delivers a task's terminal state to its callback URL. The queue
// invokes it after recording the terminal transition.
// Version: 1.0
type Dispatcher interface {
	Dispatch(ctx context.Context, task *domain.Task)
}
