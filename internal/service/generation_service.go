package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/generation"
	"github.com/phrazzld/render-api/internal/ratelimit"
	"github.com/phrazzld/render-api/internal/store"
	"github.com/phrazzld/render-api/internal/task"
)

// TaskSubmitter is the queue dependency of the service layer. It admits a
// unit of work for background execution under the global worker bound.
// Version: 1.0
type TaskSubmitter interface {
	// Enqueue submits work for an existing task. Returns
	// task.ErrQueueFull when the submission buffer is at capacity and
	// task.ErrQueueClosed after shutdown.
	Enqueue(ctx context.Context, taskID uuid.UUID, work task.Work) error
}

// GenerationService orchestrates rate limiting, provider calls, result
// formatting, and task tracking for both synchronous and asynchronous
// generation requests.
// Version: 1.0
type GenerationService interface {
	// GenerateSync runs a generation call inline: the caller blocks
	// through session admission and the upstream call, and receives the
	// formatted response directly.
	GenerateSync(ctx context.Context, req generation.Request) (*generation.Response, error)

	// SubmitAsync records a pending task and hands the generation work to
	// the background queue. The returned task carries the id the caller
	// polls. When the queue rejects the submission the task is marked
	// failed and the queue error is returned.
	SubmitAsync(ctx context.Context, req generation.Request, callbackURL string) (*domain.Task, error)

	// GetTask returns the current record for a task.
	GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// ListTasks returns task records matching the filter, newest first.
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error)

	// Cancel marks a pending or queued task cancelled. Returns
	// ErrTaskNotCancellable once the task has started processing or
	// already sits in a terminal status.
	Cancel(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
}

// generationServiceImpl implements the GenerationService interface.
type generationServiceImpl struct {
	limiter   ratelimit.Limiter
	generator generation.Generator
	formatter generation.ResultFormatter
	taskStore store.TaskStore
	queue     TaskSubmitter
	logger    *slog.Logger
}

// NewGenerationService creates a new GenerationService.
// It returns an error if any of the required dependencies are nil.
func NewGenerationService(
	limiter ratelimit.Limiter,
	generator generation.Generator,
	formatter generation.ResultFormatter,
	taskStore store.TaskStore,
	queue TaskSubmitter,
	logger *slog.Logger,
) (GenerationService, error) {
	if limiter == nil {
		return nil, errors.New("limiter cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if formatter == nil {
		return nil, errors.New("formatter cannot be nil")
	}
	if taskStore == nil {
		return nil, errors.New("taskStore cannot be nil")
	}
	if queue == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &generationServiceImpl{
		limiter:   limiter,
		generator: generator,
		formatter: formatter,
		taskStore: taskStore,
		queue:     queue,
		logger:    logger.With(slog.String("component", "generation_service")),
	}, nil
}

// GenerateSync implements GenerationService.GenerateSync.
func (s *generationServiceImpl) GenerateSync(
	ctx context.Context,
	req generation.Request,
) (*generation.Response, error) {
	return s.execute(ctx, req, nil)
}

// SubmitAsync implements GenerationService.SubmitAsync.
func (s *generationServiceImpl) SubmitAsync(
	ctx context.Context,
	req generation.Request,
	callbackURL string,
) (*domain.Task, error) {
	t := domain.NewTask(req.Type, req.Model, req.Prompt, callbackURL)
	if err := t.Validate(); err != nil {
		return nil, NewGenerationServiceError("submit", "invalid task", err)
	}

	if err := s.taskStore.Create(ctx, t); err != nil {
		return nil, NewGenerationServiceError("submit", "failed to create task record", err)
	}

	// The request is captured by value; the closure runs on a worker
	// goroutine after the HTTP request that carried it has completed.
	work := func(workCtx context.Context) (json.RawMessage, error) {
		resp, err := s.execute(workCtx, req, func(stage string) {
			s.recordProgress(workCtx, t.ID, stage)
		})
		if err != nil {
			return nil, err
		}
		return generation.MarshalResult(resp)
	}

	if err := s.queue.Enqueue(ctx, t.ID, work); err != nil {
		s.failTask(ctx, t.ID, err)
		return nil, err
	}

	s.logger.Info("async generation submitted",
		slog.String("task_id", t.ID.String()),
		slog.String("task_type", string(t.Type)),
		slog.String("model", t.Model))
	return t, nil
}

// GetTask implements GenerationService.GetTask.
func (s *generationServiceImpl) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.taskStore.GetByID(ctx, taskID)
}

// ListTasks implements GenerationService.ListTasks.
func (s *generationServiceImpl) ListTasks(
	ctx context.Context,
	filter store.TaskFilter,
) ([]*domain.Task, error) {
	return s.taskStore.List(ctx, filter)
}

// Cancel implements GenerationService.Cancel.
func (s *generationServiceImpl) Cancel(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	current, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !current.Status.IsCancellable() {
		return nil, fmt.Errorf("%w: status is %s", ErrTaskNotCancellable, current.Status)
	}

	cancelled := domain.TaskStatusCancelled
	updated, err := s.taskStore.Update(ctx, taskID, store.TaskUpdate{Status: &cancelled})
	if err != nil {
		// A worker may have claimed the task between the read and the
		// write; the store rejects the transition in that case.
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: task was claimed concurrently", ErrTaskNotCancellable)
		}
		return nil, err
	}

	s.logger.Info("task cancelled", slog.String("task_id", taskID.String()))
	return updated, nil
}

// execute runs the shared admission-generate-format path used by both the
// synchronous handler and queued work. The session slot is held for the
// duration of the upstream call and released before formatting. A non-nil
// progress callback is invoked as the request moves between stages.
func (s *generationServiceImpl) execute(
	ctx context.Context,
	req generation.Request,
	progress func(stage string),
) (*generation.Response, error) {
	if progress == nil {
		progress = func(string) {}
	}

	progress("waiting for session slot")
	release, err := s.limiter.Acquire(ctx, req.Credential)
	if err != nil {
		return nil, err
	}

	progress("generating")
	artifact, genErr := s.generator.Generate(ctx, req)
	release()
	if genErr != nil {
		return nil, genErr
	}

	return s.formatter.Format(artifact, req.Options.ResponseFormat)
}

// recordProgress writes a human-readable stage marker onto a background
// task. Failures are logged and otherwise ignored; progress is advisory.
func (s *generationServiceImpl) recordProgress(ctx context.Context, taskID uuid.UUID, stage string) {
	if _, err := s.taskStore.Update(ctx, taskID, store.TaskUpdate{Progress: &stage}); err != nil {
		s.logger.Debug("failed to record task progress",
			slog.String("task_id", taskID.String()),
			slog.String("stage", stage),
			slog.String("error", err.Error()))
	}
}

// failTask records an admission failure on a task that never reached a
// worker. The update is best-effort; a conflicting concurrent write is
// logged and not retried.
func (s *generationServiceImpl) failTask(ctx context.Context, taskID uuid.UUID, cause error) {
	failed := domain.TaskStatusFailed
	msg := cause.Error()
	now := time.Now().UTC()
	if _, err := s.taskStore.Update(ctx, taskID, store.TaskUpdate{
		Status:      &failed,
		Error:       &msg,
		CompletedAt: &now,
	}); err != nil {
		s.logger.Warn("failed to mark rejected task as failed",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
	}
}
