package ratelimit

import "errors"

// Common errors returned by the session rate limiter.
var (
	// ErrQueueFull is returned when a credential's wait queue is already at
	// capacity; the acquire attempt is rejected immediately and is never
	// silently queued past the bound.
	ErrQueueFull = errors.New("session wait queue is full")

	// ErrAcquireTimeout is returned when a waiter's admission deadline
	// expires before a grant becomes available.
	ErrAcquireTimeout = errors.New("timed out waiting for session admission")
)
