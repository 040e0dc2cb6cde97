package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/render-api/internal/api/shared"
	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/generation"
	"github.com/phrazzld/render-api/internal/platform/logger"
	"github.com/phrazzld/render-api/internal/service"
)

// GenerationHandler serves the generation endpoints: image creation, image
// editing, and video creation, each in synchronous and asynchronous form.
type GenerationHandler struct {
	service service.GenerationService
	logger  *slog.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(svc service.GenerationService, logger *slog.Logger) *GenerationHandler {
	// ALLOW-PANIC: Constructor enforces required dependencies
	if svc == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{
		service: svc,
		logger:  logger.With(slog.String("component", "generation_handler")),
	}
}

// GenerateImage handles POST /v1/images/generations.
func (h *GenerationHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req GenerateImageRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	h.run(w, r, generation.Request{
		Type:       domain.TaskTypeImage,
		Model:      req.Model,
		Prompt:     req.Prompt,
		Credential: shared.GetCredential(r.Context()),
		Options: generation.Options{
			Size:           req.Size,
			N:              req.N,
			ResponseFormat: req.ResponseFormat,
		},
	}, req.Async, req.CallbackURL)
}

// EditImage handles POST /v1/images/edits.
func (h *GenerationHandler) EditImage(w http.ResponseWriter, r *http.Request) {
	var req EditImageRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	h.run(w, r, generation.Request{
		Type:       domain.TaskTypeComposition,
		Model:      req.Model,
		Prompt:     req.Prompt,
		Credential: shared.GetCredential(r.Context()),
		Options: generation.Options{
			InputImages:    req.Images,
			ResponseFormat: req.ResponseFormat,
		},
	}, req.Async, req.CallbackURL)
}

// GenerateVideo handles POST /v1/videos/generations.
func (h *GenerationHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req GenerateVideoRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	h.run(w, r, generation.Request{
		Type:       domain.TaskTypeVideo,
		Model:      req.Model,
		Prompt:     req.Prompt,
		Credential: shared.GetCredential(r.Context()),
		Options: generation.Options{
			Size:            req.Size,
			N:               req.N,
			DurationSeconds: req.DurationSeconds,
		},
	}, req.Async, req.CallbackURL)
}

// run dispatches a validated generation request either inline or through the
// background queue.
func (h *GenerationHandler) run(
	w http.ResponseWriter,
	r *http.Request,
	genReq generation.Request,
	async bool,
	callbackURL string,
) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	// A callback only makes sense for async execution.
	if async || callbackURL != "" {
		created, err := h.service.SubmitAsync(r.Context(), genReq, callbackURL)
		if err != nil {
			status := MapErrorToStatusCode(err)
			shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
			return
		}
		log.Info("generation task accepted",
			slog.String("task_id", created.ID.String()),
			slog.String("task_type", string(genReq.Type)))
		shared.RespondWithJSON(w, r, http.StatusAccepted, SubmissionResponse{
			TaskID: created.ID,
			Status: created.Status,
		})
		return
	}

	resp, err := h.service.GenerateSync(r.Context(), genReq)
	if err != nil {
		status := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, status, GetSafeErrorMessage(err), err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
