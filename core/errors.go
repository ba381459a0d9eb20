package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison using errors.Is(). These are generic and
// get wrapped with operation-specific context by FrameworkError.
var (
	ErrProcessingFailed   = errors.New("processing failed")
	ErrValidationFailed   = errors.New("validation failed")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidOutput      = errors.New("invalid output")
	ErrTimeout            = errors.New("operation timeout")
	ErrCancelled          = errors.New("operation cancelled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrChildAgentFailed   = errors.New("child agent failed")
	ErrConfiguration      = errors.New("configuration error")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrNetwork            = errors.New("network error")
	ErrInvalidResponse    = errors.New("invalid response")
	ErrKeyExhausted       = errors.New("no available key")
)

// FrameworkError provides structured error information with context. It
// implements the error interface and supports wrapping via errors.Is/As.
type FrameworkError struct {
	Op      string // operation that failed, e.g. "workflow.Execute"
	Kind    string // error kind, one of the taxonomy in spec.md §7
	ID      string // id of the entity involved (step id, agent id, key...)
	Message string
	Err     error
}

func (e *FrameworkError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

func newErr(op, kind, id string, wrapped error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, ID: id, Err: wrapped}
}

// NewProcessingFailedError reports that a generator returned nothing usable
// or an agent otherwise could not form a result.
func NewProcessingFailedError(op, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "processing-failed", Message: msg, Err: ErrProcessingFailed}
}

// NewValidationFailedError reports a boundary/pre-condition failure.
func NewValidationFailedError(op, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "validation-failed", Message: msg, Err: ErrValidationFailed}
}

// NewInvalidInputError reports that canHandle returned false, or an agent
// was handed an input shape it cannot process.
func NewInvalidInputError(op, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "invalid-input", Message: msg, Err: ErrInvalidInput}
}

// NewInvalidOutputError reports that a downstream consumer could not make
// sense of an agent's output.
func NewInvalidOutputError(op, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "invalid-output", Message: msg, Err: ErrInvalidOutput}
}

// NewTimeoutError reports that an operation exceeded its allotted budget.
func NewTimeoutError(op string, seconds float64) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "timeout", Message: fmt.Sprintf("exceeded %.3fs", seconds), Err: ErrTimeout}
}

// NewCancelledError reports that a workflow was cancelled mid-flight.
func NewCancelledError(op string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "cancelled", Err: ErrCancelled}
}

// NewMaxRetriesExceededError surfaces the last underlying cause after a
// retry budget is exhausted.
func NewMaxRetriesExceededError(op string, attempts int, cause error) *FrameworkError {
	return &FrameworkError{
		Op:      op,
		Kind:    "max-retries-exceeded",
		Message: fmt.Sprintf("all %d attempts failed", attempts),
		Err:     fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, cause),
	}
}

// NewChildAgentFailedError identifies the failing child inside a composer.
func NewChildAgentFailedError(op, childAgentID string, cause error) *FrameworkError {
	return &FrameworkError{
		Op:      op,
		Kind:    "child-agent-failed",
		ID:      childAgentID,
		Message: fmt.Sprintf("child agent %q failed", childAgentID),
		Err:     fmt.Errorf("%w: %v", ErrChildAgentFailed, cause),
	}
}

// NewConfigurationError reports a structural misconfiguration, e.g. an
// empty children list handed to a composer that requires at least one.
func NewConfigurationError(op, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "configuration-error", Message: msg, Err: ErrConfiguration}
}

// NewAgentNotFoundError reports that the coordinator has no agent
// registered under the given id.
func NewAgentNotFoundError(op, agentID string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "agent-not-found", ID: agentID, Err: ErrAgentNotFound}
}

// NewRateLimitError reports that a provider or key manager refused a call
// because a quota was exhausted.
func NewRateLimitError(op, id, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "rate-limited", ID: id, Message: msg, Err: ErrRateLimited}
}

// NewNetworkError reports a transport-level failure talking to an external
// collaborator (the generator's HTTP backend, a cache, etc).
func NewNetworkError(op, msg string, cause error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "network", Message: msg, Err: fmt.Errorf("%w: %v", ErrNetwork, cause)}
}

// NewInvalidResponseError reports that an external collaborator returned
// something this module could not make sense of (empty choices, malformed
// JSON where structured output was requested, etc).
func NewInvalidResponseError(op, msg string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "invalid-response", Message: msg, Err: ErrInvalidResponse}
}

// NewKeyExhaustedError reports that the key manager has no key currently
// eligible for use.
func NewKeyExhaustedError(op string) *FrameworkError {
	return &FrameworkError{Op: op, Kind: "key-exhausted", Err: ErrKeyExhausted}
}

// IsRetryable reports whether err is a kind that a retry loop should
// attempt again (as opposed to a structural/config error).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrProcessingFailed) ||
		errors.Is(err, ErrInvalidOutput) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrNetwork)
}
