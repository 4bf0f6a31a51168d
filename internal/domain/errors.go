package domain

import "errors"

// Configuration failures are terminal: they are detected before any network
// call and never retried.
var (
	ErrConfiguration = errors.New("configuration error")

	// ErrAIDisabled is returned when the assistant is switched off globally.
	ErrAIDisabled = wrapSentinel("ai features are disabled")
	// ErrProviderDisabled is returned when the task's provider is switched off.
	ErrProviderDisabled = wrapSentinel("provider is disabled")
	// ErrUnsupportedProvider is returned for a provider outside the closed set.
	ErrUnsupportedProvider = wrapSentinel("unsupported provider")
	// ErrTaskUnbound is returned when no model binding exists for a task.
	ErrTaskUnbound = wrapSentinel("task has no model binding")
)

// Runtime failures of provider calls.
var (
	// ErrMalformedOutput marks model output that failed parsing or validation.
	// Terminal: retrying the same prompt is the caller's policy decision, not
	// the transport layer's.
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrTransport marks provider I/O failures (connection, 5xx, decode of the
	// HTTP envelope). Retryable.
	ErrTransport = errors.New("provider transport error")

	// ErrTimeout marks a stage deadline expiry. Retryable within budget.
	ErrTimeout = errors.New("stage timed out")
)

type sentinelError struct {
	msg string
}

func (e *sentinelError) Error() string { return e.msg }

// Unwrap chains every enablement sentinel to ErrConfiguration so callers can
// match the whole class with errors.Is(err, ErrConfiguration).
func (e *sentinelError) Unwrap() error { return ErrConfiguration }

func wrapSentinel(msg string) error {
	return &sentinelError{msg: msg}
}
