package domain

import "errors"

// Failure taxonomy shared across the pipeline. Every failure a caller can
// observe maps to exactly one of these categories.
var (
	// ErrContentRejected marks a question the classifier rejected on
	// policy grounds. Terminal for the job, never charged; the user
	// should rephrase.
	ErrContentRejected = errors.New("question rejected by content policy")

	// ErrSystemFailure marks a provider, parsing or timeout failure.
	// The job fails without charge and is safe to resubmit.
	ErrSystemFailure = errors.New("system failure during reading generation")

	// ErrAlreadyProcessed marks a state transition that found its job
	// already handled by another worker. It is a success-level no-op,
	// not a fault.
	ErrAlreadyProcessed = errors.New("job already processed")
)
