package generation

import "errors"

// Common errors returned by the generation package.
var (
	// ErrProviderFailure is returned when the upstream call fails for any
	// general reason.
	ErrProviderFailure = errors.New("upstream generation call failed")

	// ErrInvalidResponse is returned when the provider response cannot be
	// interpreted or is empty.
	ErrInvalidResponse = errors.New("invalid response from generation provider")

	// ErrContentBlocked is returned when the provider blocks the content
	// due to safety filters.
	ErrContentBlocked = errors.New("content blocked by provider safety filters")

	// ErrInvalidConfig is returned when the generator configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")
)
