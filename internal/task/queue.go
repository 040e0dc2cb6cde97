package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/store"
)

// job pairs a task id with its unit of work. Exactly one worker receives a
// given job, which is what makes the task single-writer by construction.
type job struct {
	taskID uuid.UUID
	work   Work
}

// Queue executes accepted tasks on a bounded global worker pool. Its
// concurrency bound is independent of, and in addition to, the
// per-credential session limit: workers cap how many tasks run at once
// process-wide, while the limiter (consulted inside the work itself) paces
// calls per credential.
type Queue struct {
	store      store.TaskStore
	dispatcher Dispatcher
	cfg        config.QueueConfig
	logger     *slog.Logger

	jobs chan job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewQueue creates a task queue. Call Start to launch the workers and Stop
// for a graceful shutdown.
func NewQueue(
	taskStore store.TaskStore,
	dispatcher Dispatcher,
	cfg config.QueueConfig,
	logger *slog.Logger,
) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		logger.Warn("invalid queue concurrency specified, using default",
			"specified", cfg.Concurrency,
			"default", 1)
		cfg.Concurrency = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		store:      taskStore,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "task_queue")),
		jobs:       make(chan job, cfg.Capacity),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	for i := 0; i < q.cfg.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("task queue started",
		"workers", q.cfg.Concurrency,
		"capacity", q.cfg.Capacity)
}

// Stop shuts the queue down: no further submissions are accepted, workers
// finish their current task and exit. Buffered-but-unclaimed jobs remain in
// the store as queued and are not executed.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
	q.logger.Info("task queue stopped")
}

// Enqueue accepts a task for background execution, transitioning it to
// queued. Returns ErrQueueFull when the submission buffer is at capacity and
// ErrQueueClosed after Stop; in both cases the task record is left to the
// caller to resolve.
func (q *Queue) Enqueue(ctx context.Context, taskID uuid.UUID, work Work) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	queued := domain.TaskStatusQueued
	if _, err := q.store.Update(ctx, taskID, store.TaskUpdate{Status: &queued}); err != nil {
		return fmt.Errorf("failed to mark task queued: %w", err)
	}

	select {
	case q.jobs <- job{taskID: taskID, work: work}:
		q.logger.Debug("task enqueued",
			"task_id", taskID,
			"queue_len", len(q.jobs),
			"queue_cap", cap(q.jobs))
		return nil
	default:
		return fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(q.jobs))
	}
}

// worker claims jobs until the queue shuts down.
func (q *Queue) worker(id int) {
	defer q.wg.Done()

	q.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-q.ctx.Done():
			q.logger.Debug("stopping worker", "worker_id", id)
			return
		case j := <-q.jobs:
			q.process(j, id)
		}
	}
}

// process drives one task from queued to a terminal status.
func (q *Queue) process(j job, workerID int) {
	log := q.logger.With(
		slog.String("task_id", j.taskID.String()),
		slog.Int("worker_id", workerID),
	)

	// Point-in-time cancellation gate: a task cancelled while waiting in
	// the buffer is skipped without ever invoking its work.
	current, err := q.store.GetByID(q.ctx, j.taskID)
	if err != nil {
		log.Error("failed to load task before execution", "error", err)
		return
	}
	if current.Status == domain.TaskStatusCancelled {
		log.Info("skipping cancelled task")
		return
	}
	if current.Status.IsTerminal() {
		log.Warn("skipping task already in terminal state", "status", current.Status)
		return
	}

	processing := domain.TaskStatusProcessing
	if _, err := q.store.Update(q.ctx, j.taskID, store.TaskUpdate{Status: &processing}); err != nil {
		// A cancel that raced ahead of the claim wins; anything else is
		// logged and the task is left untouched.
		log.Warn("failed to claim task for processing", "error", err)
		return
	}

	log.Info("processing task", "task_type", current.Type)

	result, workErr := q.runWork(j.work)

	now := time.Now().UTC()
	update := store.TaskUpdate{CompletedAt: &now}
	if workErr != nil {
		failed := domain.TaskStatusFailed
		msg := workErr.Error()
		update.Status = &failed
		update.Error = &msg
		log.Error("task execution failed", "error", workErr)
	} else {
		completed := domain.TaskStatusCompleted
		update.Status = &completed
		update.Result = result
		log.Info("task completed successfully")
	}

	final, err := q.store.Update(q.ctx, j.taskID, update)
	if err != nil {
		log.Error("failed to record task outcome", "error", err)
		return
	}

	if final.CallbackURL != "" {
		q.dispatcher.Dispatch(q.ctx, final)
	}
}

// runWork executes the unit of work, converting a panic into an error so a
// single task's failure can never crash the process.
func (q *Queue) runWork(work Work) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task work panicked: %v", r)
		}
	}()
	return work(q.ctx)
}
