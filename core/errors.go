package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison via errors.Is().
var (
	// Request/validation errors
	ErrInvalidRequest    = errors.New("invalid request")
	ErrRequestTooLarge   = errors.New("request exceeds maximum size")
	ErrContextTooLarge   = errors.New("request context exceeds maximum size")
	ErrMissingQuery      = errors.New("request missing query")
	ErrDuplicateRequest  = errors.New("duplicate request id")
	ErrDeadlineExceeded  = errors.New("stage deadline exceeded")

	// Pipeline stage errors
	ErrStageFailed      = errors.New("pipeline stage failed")
	ErrStageSkipped     = errors.New("pipeline stage skipped")
	ErrPlanNotADAG      = errors.New("plan steps do not form a DAG")
	ErrTooManyOptions   = errors.New("candidate option count exceeds cap")
	ErrTooManyEvidence  = errors.New("evidence item count exceeds cap")
	ErrTooManyCritiques = errors.New("critique count exceeds cap")

	// FUJI gate errors
	ErrGateRejected       = errors.New("fuji gate rejected request")
	ErrGateLayerFailed    = errors.New("fuji layer evaluation failed")
	ErrPolicyInvalid      = errors.New("fuji policy document invalid")
	ErrCoercionViolated   = errors.New("fuji decision failed invariant coercion")

	// TrustLog errors
	ErrChainBroken        = errors.New("trust log hash chain broken")
	ErrLockTimeout        = errors.New("trust log lock acquisition timed out")
	ErrLogNotFound        = errors.New("trust log record not found")
	ErrRotationInProgress = errors.New("trust log rotation already in progress")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// State errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotInitialized = errors.New("not initialized")

	// Operation/transport errors
	ErrTimeout            = errors.New("operation timeout")
	ErrContextCanceled    = errors.New("context canceled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
	ErrConnectionFailed   = errors.New("connection failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

// VeritasError carries structured context around a wrapped error: which
// operation failed, what kind of failure it was, and which request it
// belongs to.
type VeritasError struct {
	Op      string // e.g. "pipeline.run_planner", "trustlog.Append"
	Kind    string // e.g. "stage", "gate", "log", "config"
	ID      string // request_id or record hash, when known
	Message string
	Err     error
}

func (e *VeritasError) Error() string {
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

func (e *VeritasError) Unwrap() error {
	return e.Err
}

// NewVeritasError wraps err with operation/kind context.
func NewVeritasError(op, kind string, err error) *VeritasError {
	return &VeritasError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether err represents a transient condition worth
// retrying under the resilience package's backoff policy.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrRateLimited)
}

// IsStageFailure reports whether err represents a pipeline stage failure
// (as opposed to a skip, which is not an error at all).
func IsStageFailure(err error) bool {
	return errors.Is(err, ErrStageFailed) ||
		errors.Is(err, ErrPlanNotADAG) ||
		errors.Is(err, ErrTooManyOptions) ||
		errors.Is(err, ErrTooManyEvidence) ||
		errors.Is(err, ErrTooManyCritiques)
}

// IsConfigurationError reports whether err is configuration-related.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// IsFatal reports whether err should abort the pipeline outright rather
// than being absorbed as a stage skip or a FUJI hold.
func IsFatal(err error) bool {
	return errors.Is(err, ErrChainBroken) ||
		errors.Is(err, ErrNotInitialized) ||
		errors.Is(err, ErrInvalidConfiguration)
}
