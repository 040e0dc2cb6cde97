package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/render-api/internal/domain"
	"github.com/phrazzld/render-api/internal/generation"
	"github.com/phrazzld/render-api/internal/ratelimit"
	"github.com/phrazzld/render-api/internal/service"
	"github.com/phrazzld/render-api/internal/store"
	"github.com/phrazzld/render-api/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Admission errors
	case errors.Is(err, ratelimit.ErrQueueFull),
		errors.Is(err, task.ErrQueueFull):
		return http.StatusTooManyRequests

	case errors.Is(err, ratelimit.ErrAcquireTimeout):
		return http.StatusGatewayTimeout

	case errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// Credential errors
	case errors.Is(err, generation.ErrInvalidConfig):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrTaskNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrTaskNotCancellable),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrInvalidTaskType),
		errors.Is(err, domain.ErrInvalidTaskStatus),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, generation.ErrContentBlocked):
		return http.StatusBadRequest

	// Upstream failures
	case errors.Is(err, generation.ErrProviderFailure),
		errors.Is(err, generation.ErrInvalidResponse):
		return http.StatusBadGateway

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, ratelimit.ErrQueueFull):
		return "Too many waiting requests for this credential"

	case errors.Is(err, task.ErrQueueFull):
		return "Server is at capacity, try again later"

	case errors.Is(err, ratelimit.ErrAcquireTimeout):
		return "Timed out waiting for a generation slot"

	case errors.Is(err, task.ErrQueueClosed):
		return "Server is shutting down"

	case errors.Is(err, generation.ErrInvalidConfig):
		return "Missing or invalid API credential"

	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, service.ErrTaskNotCancellable),
		errors.Is(err, domain.ErrInvalidTransition):
		return "Task can no longer be cancelled"

	case errors.Is(err, generation.ErrContentBlocked):
		return "Content blocked by provider safety filters"

	case errors.Is(err, generation.ErrProviderFailure),
		errors.Is(err, generation.ErrInvalidResponse):
		return "Generation provider request failed"

	case errors.Is(err, domain.ErrInvalidTaskType):
		return "Unsupported task type"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid task data"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validation errors
// and returns a user-friendly message.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	if strings.Contains(errMsg, "Field validation") {
		// Example: "Key: 'GenerateImageRequest.Prompt' Error:Field validation
		// for 'Prompt' failed on the 'required' tag"
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				var tag string
				if len(fieldParts) >= 5 {
					tag = fieldParts[3]
				}
				if tag != "" {
					return fmt.Sprintf("Invalid %s: %s", field, getValidationTagMessage(tag))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "url":
		return "invalid URL"
	case "min":
		return "value too small"
	case "max":
		return "value too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}
