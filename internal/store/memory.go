package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/domain"
)

// MemoryTaskStore implements TaskStore with an in-process map. It is the
// fallback backend when no database is configured or reachable; all records
// are lost on restart.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task
}

// NewMemoryTaskStore creates an empty in-memory task store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[uuid.UUID]*domain.Task),
	}
}

// Ensure MemoryTaskStore implements the TaskStore interface.
var _ TaskStore = (*MemoryTaskStore)(nil)

// Create implements TaskStore.Create.
func (s *MemoryTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: task %s", ErrDuplicate, task.ID)
	}

	s.tasks[task.ID] = copyTask(task)
	return nil
}

// GetByID implements TaskStore.GetByID.
func (s *MemoryTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return copyTask(task), nil
}

// Update implements TaskStore.Update. The merged record is validated before
// it replaces the stored one, so an illegal status edge or a result/error
// conflict never becomes visible to readers.
func (s *MemoryTaskStore) Update(
	ctx context.Context,
	id uuid.UUID,
	update TaskUpdate,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	merged := copyTask(current)
	if err := ApplyTaskUpdate(merged, current.Status, update); err != nil {
		return nil, err
	}

	s.tasks[id] = merged
	return copyTask(merged), nil
}

// List implements TaskStore.List.
func (s *MemoryTaskStore) List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error) {
	limit := clampLimit(filter.Limit)

	s.mu.RLock()
	matched := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Type != "" && task.Type != filter.Type {
			continue
		}
		matched = append(matched, copyTask(task))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ApplyTaskUpdate merges a partial update into task, checking transition
// legality against the prior status and the merged record's field invariants.
// Both store implementations funnel their merge through this so the state
// machine is enforced identically regardless of backend.
func ApplyTaskUpdate(task *domain.Task, prior domain.TaskStatus, update TaskUpdate) error {
	if update.Status != nil && *update.Status != prior {
		if !prior.CanTransition(*update.Status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, prior, *update.Status)
		}
		task.Status = *update.Status
	}
	if update.Result != nil {
		task.Result = append([]byte(nil), update.Result...)
	}
	if update.Error != nil {
		task.Error = *update.Error
	}
	if update.Progress != nil {
		task.Progress = *update.Progress
	}
	if update.CompletedAt != nil {
		at := *update.CompletedAt
		task.CompletedAt = &at
	}

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}
	return nil
}

// copyTask returns a deep copy so callers never alias stored records.
func copyTask(task *domain.Task) *domain.Task {
	dup := *task
	if task.Result != nil {
		dup.Result = append([]byte(nil), task.Result...)
	}
	if task.CompletedAt != nil {
		at := *task.CompletedAt
		dup.CompletedAt = &at
	}
	return &dup
}
