package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeVideo, "veo-2.0", "a cat surfing", "https://example.com/hook")

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, TaskTypeVideo, task.Type)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, "veo-2.0", task.Model)
	assert.Equal(t, "a cat surfing", task.Prompt)
	assert.Equal(t, "https://example.com/hook", task.CallbackURL)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Nil(t, task.CompletedAt)
	assert.Empty(t, task.Result)
	assert.Empty(t, task.Error)

	require.NoError(t, task.Validate())
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr error
	}{
		{
			name:   "valid pending task",
			mutate: func(task *Task) {},
		},
		{
			name:    "unknown type",
			mutate:  func(task *Task) { task.Type = "audio" },
			wantErr: ErrInvalidTaskType,
		},
		{
			name:    "unknown status",
			mutate:  func(task *Task) { task.Status = "exploded" },
			wantErr: ErrInvalidTaskStatus,
		},
		{
			name: "result and error together",
			mutate: func(task *Task) {
				task.Status = TaskStatusCompleted
				task.Result = json.RawMessage(`{"ok":true}`)
				task.Error = "boom"
			},
			wantErr: ErrResultErrorConflict,
		},
		{
			name: "result on non-completed task",
			mutate: func(task *Task) {
				task.Status = TaskStatusProcessing
				task.Result = json.RawMessage(`{"ok":true}`)
			},
			wantErr: ErrResultErrorConflict,
		},
		{
			name: "error on non-failed task",
			mutate: func(task *Task) {
				task.Status = TaskStatusCompleted
				task.Error = "boom"
			},
			wantErr: ErrResultErrorConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask(TaskTypeImage, "imagen-3.0", "prompt", "")
			tt.mutate(task)

			err := task.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTaskStatusCanTransition(t *testing.T) {
	legal := map[TaskStatus][]TaskStatus{
		TaskStatusPending:    {TaskStatusQueued, TaskStatusProcessing, TaskStatusCancelled, TaskStatusFailed},
		TaskStatusQueued:     {TaskStatusProcessing, TaskStatusCancelled, TaskStatusFailed},
		TaskStatusProcessing: {TaskStatusCompleted, TaskStatusFailed},
	}

	all := []TaskStatus{
		TaskStatusPending, TaskStatusQueued, TaskStatusProcessing,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled,
	}

	for _, from := range all {
		for _, to := range all {
			allowed := false
			for _, next := range legal[from] {
				if next == to {
					allowed = true
				}
			}
			assert.Equal(t, allowed, from.CanTransition(to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestTaskStatusHelpers(t *testing.T) {
	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.True(t, TaskStatusFailed.IsTerminal())
	assert.True(t, TaskStatusCancelled.IsTerminal())
	assert.False(t, TaskStatusPending.IsTerminal())
	assert.False(t, TaskStatusProcessing.IsTerminal())

	assert.True(t, TaskStatusPending.IsCancellable())
	assert.True(t, TaskStatusQueued.IsCancellable())
	assert.False(t, TaskStatusProcessing.IsCancellable())
	assert.False(t, TaskStatusCompleted.IsCancellable())
	assert.False(t, TaskStatusCancelled.IsCancellable())
}

func TestTaskJSONShape(t *testing.T) {
	task := NewTask(TaskTypeImage, "imagen-3.0", "sunset", "")
	data, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "pending", decoded["status"])
	assert.Equal(t, "image", decoded["type"])
	// Optional fields are omitted while unset.
	assert.NotContains(t, decoded, "result")
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "callback_url")
	assert.NotContains(t, decoded, "completed_at")
}
