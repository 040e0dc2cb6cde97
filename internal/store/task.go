package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/domain"
)

// TaskUpdate is a partial update merged into an existing task record. Nil
// fields are left untouched. Callers must respect the single-writer rule:
// once a task leaves the queued state, only its owning worker may update it.
type TaskUpdate struct {
	Status      *domain.TaskStatus
	Result      json.RawMessage
	Error       *string
	Progress    *string
	CompletedAt *time.Time
}

// TaskFilter selects tasks for List. Zero values match everything.
type TaskFilter struct {
	Status domain.TaskStatus
	Type   domain.TaskType
	Limit  int
}

// Default and maximum List limits applied when the filter leaves Limit unset
// or asks for more than the store will return.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// TaskStore defines the interface for task record persistence.
// Implementations must be safe for concurrent use. Calls may involve a
// network round trip; callers must treat them as suspension points.
// Version: 1.0
type TaskStore interface {
	// Create persists a new task record. The task must already carry its
	// id, pending status and creation time (see domain.NewTask).
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update merges the given partial update into the existing record and
	// persists the merged record, returning it.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// List returns tasks matching the filter, newest first, capped at the
	// filter's limit (DefaultListLimit when unset, MaxListLimit at most).
	List(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)
}

// clampLimit normalizes a caller-supplied list limit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
