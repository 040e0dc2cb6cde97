package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/generation"
	"github.com/phrazzld/render-api/internal/platform/logger"
	"github.com/phrazzld/render-api/internal/ratelimit"
	"github.com/phrazzld/render-api/internal/store"
	"github.com/phrazzld/render-api/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLimiter counts acquisitions and releases and can fail admission.
type mockLimiter struct {
	mu       sync.Mutex
	acquires int
	releases int
	err      error
}

func (m *mockLimiter) Acquire(ctx context.Context, credential string) (ratelimit.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.acquires++
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.releases++
	}, nil
}

func (m *mockLimiter) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.releases
}

// mockGenerator returns a scripted artifact or error.
type mockGenerator struct {
	artifact *generation.Artifact
	err      error
	lastReq  generation.Request
}

func (m *mockGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Artifact, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.artifact, nil
}

// mockSubmitter captures submitted work without running it, and can reject.
type mockSubmitter struct {
	err    error
	taskID uuid.UUID
	work   task.Work
}

func (m *mockSubmitter) Enqueue(ctx context.Context, taskID uuid.UUID, work task.Work) error {
	if m.err != nil {
		return m.err
	}
	m.taskID = taskID
	m.work = work
	return nil
}

type serviceFixture struct {
	svc       GenerationService
	limiter   *mockLimiter
	generator *mockGenerator
	submitter *mockSubmitter
	store     *store.MemoryTaskStore
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		limiter: &mockLimiter{},
		generator: &mockGenerator{
			artifact: &generation.Artifact{
				Items: []generation.ArtifactItem{{URL: "https://cdn.example.com/out.png"}},
			},
		},
		submitter: &mockSubmitter{},
		store:     store.NewMemoryTaskStore(),
	}
	log, _ := logger.NewTestLogger()
	svc, err := NewGenerationService(
		f.limiter,
		f.generator,
		generation.NewFormatter(),
		f.store,
		f.submitter,
		log,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func imageRequest() generation.Request {
	return generation.Request{
		Type:       domain.TaskTypeImage,
		Model:      "imagen-3.0",
		Prompt:     "a quiet harbor at dusk",
		Credential: "sk-user-1",
	}
}

func TestNewGenerationServiceNilDependencies(t *testing.T) {
	log, _ := logger.NewTestLogger()
	f := newServiceFixture(t)

	cases := []struct {
		name string
		call func() (GenerationService, error)
	}{
		{"nil limiter", func() (GenerationService, error) {
			return NewGenerationService(nil, f.generator, generation.NewFormatter(), f.store, f.submitter, log)
		}},
		{"nil generator", func() (GenerationService, error) {
			return NewGenerationService(f.limiter, nil, generation.NewFormatter(), f.store, f.submitter, log)
		}},
		{"nil formatter", func() (GenerationService, error) {
			return NewGenerationService(f.limiter, f.generator, nil, f.store, f.submitter, log)
		}},
		{"nil store", func() (GenerationService, error) {
			return NewGenerationService(f.limiter, f.generator, generation.NewFormatter(), nil, f.submitter, log)
		}},
		{"nil queue", func() (GenerationService, error) {
			return NewGenerationService(f.limiter, f.generator, generation.NewFormatter(), f.store, nil, log)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := tc.call()
			assert.Error(t, err)
			assert.Nil(t, svc)
		})
	}
}

func TestGenerateSync(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.svc.GenerateSync(context.Background(), imageRequest())
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://cdn.example.com/out.png", resp.Data[0].URL)

	acquires, releases := f.limiter.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases, "session slot must be released after the upstream call")
}

func TestGenerateSyncAdmissionFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.limiter.err = ratelimit.ErrAcquireTimeout

	resp, err := f.svc.GenerateSync(context.Background(), imageRequest())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ratelimit.ErrAcquireTimeout)
}

func TestGenerateSyncProviderFailureReleasesSlot(t *testing.T) {
	f := newServiceFixture(t)
	f.generator.err = generation.ErrContentBlocked

	resp, err := f.svc.GenerateSync(context.Background(), imageRequest())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, generation.ErrContentBlocked)

	_, releases := f.limiter.counts()
	assert.Equal(t, 1, releases)
}

func TestSubmitAsync(t *testing.T) {
	f := newServiceFixture(t)

	created, err := f.svc.SubmitAsync(context.Background(), imageRequest(), "https://example.com/hook")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, created.Status)
	assert.Equal(t, "https://example.com/hook", created.CallbackURL)

	// The store holds the pending record before any work runs.
	stored, err := f.store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)

	// The captured work performs the full admission-generate-format path.
	require.NotNil(t, f.submitter.work)
	assert.Equal(t, created.ID, f.submitter.taskID)

	result, err := f.submitter.work(context.Background())
	require.NoError(t, err)

	var resp generation.Response
	require.NoError(t, json.Unmarshal(result, &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://cdn.example.com/out.png", resp.Data[0].URL)

	acquires, releases := f.limiter.counts()
	assert.Equal(t, 1, acquires)
	assert.Equal(t, 1, releases)

	// Work records its stage on the task record as it runs.
	stored, err = f.store.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "generating", stored.Progress)
}

func TestSubmitAsyncQueueFull(t *testing.T) {
	f := newServiceFixture(t)
	f.submitter.err = task.ErrQueueFull

	created, err := f.svc.SubmitAsync(context.Background(), imageRequest(), "")
	assert.Nil(t, created)
	assert.ErrorIs(t, err, task.ErrQueueFull)

	// The rejected submission leaves a failed record behind.
	tasks, listErr := f.store.List(context.Background(), store.TaskFilter{})
	require.NoError(t, listErr)
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskStatusFailed, tasks[0].Status)
	assert.NotEmpty(t, tasks[0].Error)
	assert.NotNil(t, tasks[0].CompletedAt)
}

func TestSubmitAsyncInvalidType(t *testing.T) {
	f := newServiceFixture(t)
	req := imageRequest()
	req.Type = domain.TaskType("hologram")

	created, err := f.svc.SubmitAsync(context.Background(), req, "")
	assert.Nil(t, created)
	assert.ErrorIs(t, err, domain.ErrInvalidTaskType)
}

func TestCancelPendingTask(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.svc.SubmitAsync(context.Background(), imageRequest(), "")
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, cancelled.Status)
}

func TestCancelProcessingTask(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.svc.SubmitAsync(context.Background(), imageRequest(), "")
	require.NoError(t, err)

	processing := domain.TaskStatusProcessing
	_, err = f.store.Update(context.Background(), created.ID, store.TaskUpdate{Status: &processing})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), created.ID)
	assert.Nil(t, cancelled)
	assert.ErrorIs(t, err, ErrTaskNotCancellable)
}

func TestCancelTerminalTask(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.svc.SubmitAsync(context.Background(), imageRequest(), "")
	require.NoError(t, err)

	failed := domain.TaskStatusFailed
	msg := "upstream error"
	_, err = f.store.Update(context.Background(), created.ID, store.TaskUpdate{Status: &failed, Error: &msg})
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), created.ID)
	assert.ErrorIs(t, err, ErrTaskNotCancellable)
}

func TestCancelMissingTask(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestGetAndListTasks(t *testing.T) {
	f := newServiceFixture(t)
	created, err := f.svc.SubmitAsync(context.Background(), imageRequest(), "")
	require.NoError(t, err)

	got, err := f.svc.GetTask(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	tasks, err := f.svc.ListTasks(context.Background(), store.TaskFilter{Status: domain.TaskStatusPending})
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	none, err := f.svc.ListTasks(context.Background(), store.TaskFilter{Status: domain.TaskStatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGenerationServiceErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	err := NewGenerationServiceError("submit", "failed to create task record", inner)
	assert.Contains(t, err.Error(), "generation service submit failed")
	assert.ErrorIs(t, err, inner)

	bare := NewGenerationServiceError("cancel", "no record", nil)
	assert.Contains(t, bare.Error(), "generation service cancel failed: no record")
}
