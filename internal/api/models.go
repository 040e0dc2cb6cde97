package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/render-api/internal/domain"
)

// GenerateImageRequest defines the payload for the image generation endpoint.
type GenerateImageRequest struct {
	Model          string `json:"model"                     validate:"required"`
	Prompt         string `json:"prompt"                    validate:"required"`
	N              int    `json:"n,omitempty"               validate:"omitempty,min=1,max=10"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty" validate:"omitempty,oneof=url b64_json"`
	Async          bool   `json:"async,omitempty"`
	CallbackURL    string `json:"callback_url,omitempty"    validate:"omitempty,url"`
}

// EditImageRequest defines the payload for the image edit endpoint. Source
// images are URLs, data URIs, or bare base64 payloads.
type EditImageRequest struct {
	Model          string   `json:"model"                     validate:"required"`
	Prompt         string   `json:"prompt"                    validate:"required"`
	Images         []string `json:"images"                    validate:"required,min=1,max=8"`
	ResponseFormat string   `json:"response_format,omitempty" validate:"omitempty,oneof=url b64_json"`
	Async          bool     `json:"async,omitempty"`
	CallbackURL    string   `json:"callback_url,omitempty"    validate:"omitempty,url"`
}

// GenerateVideoRequest defines the payload for the video generation endpoint.
type GenerateVideoRequest struct {
	Model           string `json:"model"                      validate:"required"`
	Prompt          string `json:"prompt"                     validate:"required"`
	N               int    `json:"n,omitempty"                validate:"omitempty,min=1,max=4"`
	Size            string `json:"size,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty" validate:"omitempty,min=1,max=60"`
	Async           bool   `json:"async,omitempty"`
	CallbackURL     string `json:"callback_url,omitempty"     validate:"omitempty,url"`
}

// SubmissionResponse acknowledges an accepted asynchronous request.
type SubmissionResponse struct {
	TaskID uuid.UUID         `json:"task_id"`
	Status domain.TaskStatus `json:"status"`
}

// TaskListResponse wraps the result of a task listing.
type TaskListResponse struct {
	Tasks []*domain.Task `json:"tasks"`
}
