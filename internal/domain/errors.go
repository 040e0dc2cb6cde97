package domain

import "errors"

// Validation errors for task records.
var (
	// ErrInvalidTaskType is returned when a task carries an unknown type.
	ErrInvalidTaskType = errors.New("invalid task type")

	// ErrInvalidTaskStatus is returned when a task carries an unknown status.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrResultErrorConflict is returned when result and error are set
	// together, or on a status that does not admit them. Result belongs to
	// completed tasks only, error to failed tasks only.
	ErrResultErrorConflict = errors.New("result and error are mutually exclusive")

	// ErrInvalidTransition is returned when a status update does not follow
	// a legal edge of the task state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)
