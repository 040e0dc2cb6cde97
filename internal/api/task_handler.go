package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/api/shared"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/service"
	"github.com/phrazzld/render-api/internal/store"
)

// TaskHandler serves task inspection and cancellation.
type TaskHandler struct {
	service service.GenerationService
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc service.GenerationService, logger *slog.Logger) *TaskHandler {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if svc == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "task_handler")),
	}
}

// GetTask handles GET /v1/tasks/{taskID}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	t, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// ListTasks handles GET /v1/tasks with optional status, type, and limit
// query parameters.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter := store.TaskFilter{}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.TaskStatus(status)
		if !statusKnown(filter.Status) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown status filter")
			return
		}
	}
	if taskType := r.URL.Query().Get("type"); taskType != "" {
		filter.Type = domain.TaskType(taskType)
		if !typeKnown(filter.Type) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown type filter")
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	tasks, err := h.service.ListTasks(r.Context(), filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskListResponse{Tasks: tasks})
}

// CancelTask handles POST /v1/tasks/{taskID}/cancel.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := h.taskIDFromURL(w, r)
	if !ok {
		return
	}

	t, err := h.service.Cancel(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	h.logger.Info("task cancelled via API",
		slog.String("task_id", taskID.String()),
		slog.String("trace_id", shared.GetTraceID(r.Context())))
	shared.RespondWithJSON(w, r, http.StatusOK, t)
}

// taskIDFromURL parses the taskID path parameter, writing a 400 on failure.
func (h *TaskHandler) taskIDFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "taskID")
	taskID, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return taskID, true
}

func statusKnown(s domain.TaskStatus) bool {
	switch s {
	case domain.TaskStatusPending, domain.TaskStatusQueued, domain.TaskStatusProcessing,
		domain.TaskStatusCompleted, domain.TaskStatusFailed, domain.TaskStatusCancelled:
		return true
	}
	return false
}

func typeKnown(t domain.TaskType) bool {
	switch t {
	case domain.TaskTypeImage, domain.TaskTypeComposition, domain.TaskTypeVideo:
		return true
	}
	return false
}
