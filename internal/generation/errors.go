package generation

import "errors"

// Common errors returned by provider implementations.
var (
	// ErrInvalidResponse is returned when a model response cannot be
	// parsed or is missing required fields.
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the model blocks the content due
	// to safety filters.
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrProviderUnavailable is returned for transport-level provider
	// failures.
	ErrProviderUnavailable = errors.New("model provider unavailable")

	// ErrInvalidConfig is returned when a provider configuration is invalid.
	ErrInvalidConfig = errors.New("invalid provider configuration")
)
