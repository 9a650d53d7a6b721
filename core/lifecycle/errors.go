package lifecycle

import "errors"

var (
	// ErrForbidden: the actor lacks the capability or ownership the
	// requested change requires.
	ErrForbidden = errors.New("forbidden")
	// ErrTerminalState: the incident is closed and frozen.
	ErrTerminalState = errors.New("terminal state")
	// ErrNoOp: the target equals the current value. Callers treat this
	// as already-satisfied, not as a failure.
	ErrNoOp = errors.New("no change")
	// ErrPersistenceUnavailable: the store collaborator failed. The only
	// kind eligible for caller-side retry with backoff.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrValidation: malformed input, e.g. an unknown target status.
	ErrValidation = errors.New("validation failed")
)
