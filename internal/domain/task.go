package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a generation task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskType identifies the kind of generation a task performs.
type TaskType string

// Supported task types.
const (
	TaskTypeImage       TaskType = "image"
	TaskTypeComposition TaskType = "composition"
	TaskTypeVideo       TaskType = "video"
)

// Task is the tracked record of one asynchronous generation request.
// A task is owned by a single worker for its lifetime once it leaves the
// queued state; only that worker may write terminal fields.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Type        TaskType        `json:"type"`
	Status      TaskStatus      `json:"status"`
	Model       string          `json:"model"`
	Prompt      string          `json:"prompt"`
	CallbackURL string          `json:"callback_url,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Progress    string          `json:"progress,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewTask creates a pending task with a fresh id and creation timestamp.
func NewTask(taskType TaskType, model, prompt, callbackURL string) *Task {
	return &Task{
		ID:          uuid.New(),
		Type:        taskType,
		Status:      TaskStatusPending,
		Model:       model,
		Prompt:      prompt,
		CallbackURL: callbackURL,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate checks the task's invariants: a known type, a known status, and
// mutually exclusive result/error fields.
func (t *Task) Validate() error {
	switch t.Type {
	case TaskTypeImage, TaskTypeComposition, TaskTypeVideo:
	default:
		return ErrInvalidTaskType
	}

	switch t.Status {
	case TaskStatusPending, TaskStatusQueued, TaskStatusProcessing,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
	default:
		return ErrInvalidTaskStatus
	}

	if len(t.Result) > 0 && t.Error != "" {
		return ErrResultErrorConflict
	}
	if len(t.Result) > 0 && t.Status != TaskStatusCompleted {
		return ErrResultErrorConflict
	}
	if t.Error != "" && t.Status != TaskStatusFailed {
		return ErrResultErrorConflict
	}

	return nil
}

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// IsCancellable reports whether a task in this status may still be cancelled.
// Cancellation is a point-in-time check before execution starts; a task that
// has begun processing is never interrupted.
func (s TaskStatus) IsCancellable() bool {
	return s == TaskStatusPending || s == TaskStatusQueued
}

// CanTransition reports whether moving from s to next is a legal edge in the
// task state machine:
//
//	pending -> queued -> processing -> completed | failed
//	pending | queued  -> cancelled
//	pending | queued  -> failed      (admission rejected before any work ran)
//
// pending -> processing is also legal so a submission does not require an
// intermediate queued write before a worker claims it.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusQueued || next == TaskStatusProcessing ||
			next == TaskStatusCancelled || next == TaskStatusFailed
	case TaskStatusQueued:
		return next == TaskStatusProcessing || next == TaskStatusCancelled ||
			next == TaskStatusFailed
	case TaskStatusProcessing:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}
