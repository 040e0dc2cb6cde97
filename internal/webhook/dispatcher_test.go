package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEndpoint captures webhook deliveries and serves scripted statuses.
type recordingEndpoint struct {
	mu       sync.Mutex
	statuses []int
	requests []recordedRequest
}

type recordedRequest struct {
	event  string
	taskID string
	body   map[string]interface{}
}

func (e *recordingEndpoint) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.mu.Lock()
		defer e.mu.Unlock()

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		e.requests = append(e.requests, recordedRequest{
			event:  r.Header.Get(HeaderEvent),
			taskID: r.Header.Get(HeaderTaskID),
			body:   body,
		})

		status := http.StatusOK
		if len(e.statuses) > 0 {
			status = e.statuses[0]
			e.statuses = e.statuses[1:]
		}
		w.WriteHeader(status)
	}
}

func (e *recordingEndpoint) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.requests)
}

// fakeSleeper records requested delays and returns instantly.
type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestDispatcher() (*Dispatcher, *fakeSleeper, *logger.TestLogBuffer) {
	log, buf := logger.NewTestLogger()
	d := NewDispatcher(config.WebhookConfig{Timeout: 5 * time.Second}, log)
	sleeper := &fakeSleeper{}
	d.sleep = sleeper.sleep
	return d, sleeper, buf
}

func completedTask(callbackURL string) *domain.Task {
	task := domain.NewTask(domain.TaskTypeVideo, "veo-2.0", "a storm over the sea", callbackURL)
	task.Status = domain.TaskStatusCompleted
	task.Result = json.RawMessage(`{"data":[{"url":"https://cdn.example.com/v.mp4"}]}`)
	now := time.Now().UTC()
	task.CompletedAt = &now
	return task
}

func TestDispatchSuccessFirstAttempt(t *testing.T) {
	endpoint := &recordingEndpoint{}
	server := httptest.NewServer(endpoint.handler(t))
	defer server.Close()

	d, sleeper, _ := newTestDispatcher()
	task := completedTask(server.URL)

	d.Dispatch(context.Background(), task)

	require.Equal(t, 1, endpoint.count())
	req := endpoint.requests[0]
	assert.Equal(t, EventTaskCompleted, req.event)
	assert.Equal(t, task.ID.String(), req.taskID)
	assert.Equal(t, "completed", req.body["status"])
	assert.Empty(t, sleeper.delays, "no retries after a 2xx")
}

func TestDispatchRetriesWithFixedDelays(t *testing.T) {
	// 500, 500, 200: exactly 3 POSTs, with the scheduled waits 5s then 15s
	// between them, and no further attempts.
	endpoint := &recordingEndpoint{statuses: []int{500, 500, 200}}
	server := httptest.NewServer(endpoint.handler(t))
	defer server.Close()

	d, sleeper, _ := newTestDispatcher()
	d.Dispatch(context.Background(), completedTask(server.URL))

	assert.Equal(t, 3, endpoint.count())
	require.Len(t, sleeper.delays, 2)
	assert.Equal(t, 5*time.Second, sleeper.delays[0])
	assert.Equal(t, 15*time.Second, sleeper.delays[1])
}

func TestDispatchGivesUpAfterFourAttempts(t *testing.T) {
	endpoint := &recordingEndpoint{statuses: []int{500, 502, 503, 500, 500}}
	server := httptest.NewServer(endpoint.handler(t))
	defer server.Close()

	d, sleeper, buf := newTestDispatcher()
	d.Dispatch(context.Background(), completedTask(server.URL))

	assert.Equal(t, 4, endpoint.count(), "one initial attempt plus three retries")
	assert.Equal(t, []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}, sleeper.delays)

	entries, err := buf.Entries()
	require.NoError(t, err)
	var exhausted bool
	for _, entry := range entries {
		if entry["msg"] == "webhook delivery failed after all attempts" {
			exhausted = true
		}
	}
	assert.True(t, exhausted, "exhaustion must be logged")
}

func TestDispatchFailedTaskEvent(t *testing.T) {
	endpoint := &recordingEndpoint{}
	server := httptest.NewServer(endpoint.handler(t))
	defer server.Close()

	task := domain.NewTask(domain.TaskTypeImage, "imagen-3.0", "p", server.URL)
	task.Status = domain.TaskStatusFailed
	task.Error = "provider rejected prompt"

	d, _, _ := newTestDispatcher()
	d.Dispatch(context.Background(), task)

	require.Equal(t, 1, endpoint.count())
	req := endpoint.requests[0]
	assert.Equal(t, EventTaskFailed, req.event)
	assert.Equal(t, "provider rejected prompt", req.body["error"])
}

func TestDispatchNoCallbackURL(t *testing.T) {
	d, _, _ := newTestDispatcher()
	task := domain.NewTask(domain.TaskTypeImage, "imagen-3.0", "p", "")
	task.Status = domain.TaskStatusCompleted

	// Must be a silent no-op.
	d.Dispatch(context.Background(), task)
}

func TestDispatchNetworkFailureRetries(t *testing.T) {
	// A server that is immediately closed produces connection errors.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d, sleeper, _ := newTestDispatcher()
	d.Dispatch(context.Background(), completedTask(url))

	assert.Len(t, sleeper.delays, 3, "network failures exhaust the full retry schedule")
}

func TestDispatchStopsOnContextCancel(t *testing.T) {
	endpoint := &recordingEndpoint{statuses: []int{500, 500, 500, 500}}
	server := httptest.NewServer(endpoint.handler(t))
	defer server.Close()

	d, _, _ := newTestDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel during the first backoff: the sleeper returns ctx.Err().
	d.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return context.Canceled
	}

	d.Dispatch(ctx, completedTask(server.URL))
	assert.Equal(t, 1, endpoint.count())
}
