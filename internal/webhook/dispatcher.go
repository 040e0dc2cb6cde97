// Package webhook delivers terminal task state to caller-supplied URLs with
// bounded retries. Delivery failure is logged and dropped; it never feeds
// back into task state.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/redact"
)

// Event header values identifying the terminal state being delivered.
const (
	EventTaskCompleted = "task.completed"
	EventTaskFailed    = "task.failed"
)

// Delivery headers.
const (
	HeaderEvent  = "X-Webhook-Event"
	HeaderTaskID = "X-Task-Id"
)

// retryDelays are the fixed waits between successive delivery attempts:
// 4 attempts total, stopping early on any 2xx response.
var retryDelays = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

// Dispatcher posts task records to their callback URLs.
type Dispatcher struct {
	client *http.Client
	logger *slog.Logger

	// sleep waits between attempts, honoring context cancellation.
	// Injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher with the given per-attempt timeout.
func NewDispatcher(cfg config.WebhookConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(slog.String("component", "webhook_dispatcher")),
		sleep:  sleepCtx,
	}
}

// Dispatch delivers the task's terminal state to its callback URL, if one is
// set. It blocks through the retry schedule and is intended to be called from
// the task's owning worker after the terminal status is recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, task *domain.Task) {
	if task.CallbackURL == "" {
		return
	}

	event := EventTaskCompleted
	if task.Status == domain.TaskStatusFailed {
		event = EventTaskFailed
	}

	log := d.logger.With(
		slog.String("task_id", task.ID.String()),
		slog.String("event", event),
	)

	body, err := json.Marshal(task)
	if err != nil {
		log.Error("failed to marshal task for webhook delivery", "error", err)
		return
	}

	attempts := len(retryDelays) + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := d.deliver(ctx, task, event, body)
		if err == nil {
			log.Info("webhook delivered", "attempt", attempt)
			return
		}

		// Callback URLs can embed tokens; redact before logging.
		log.Warn("webhook delivery attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", redact.Error(err))

		if attempt == attempts {
			break
		}
		if err := d.sleep(ctx, retryDelays[attempt-1]); err != nil {
			log.Warn("webhook retry abandoned", "error", err)
			return
		}
	}

	// Exhausted retries: the generation outcome already stands on its own,
	// so delivery failure is terminal here and never re-queued.
	log.Error("webhook delivery failed after all attempts",
		"attempts", attempts,
		"callback_url_set", true)
}

// deliver performs one POST attempt. Any 2xx response is success.
func (d *Dispatcher) deliver(ctx context.Context, task *domain.Task, event string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event)
	req.Header.Set(HeaderTaskID, task.ID.String())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
