package executor

import "fmt"

// FailureKind classifies a command failure for the remote caller.
type FailureKind string

const (
	// KindValidation: malformed or missing parameters. Never retried.
	KindValidation FailureKind = "validation_error"
	// KindTargetNotFound: the referenced index does not resolve in the
	// current identity table. Signals the caller to request a fresh snapshot.
	KindTargetNotFound FailureKind = "target_not_found"
	// KindExecution: every fallback primitive was exhausted.
	KindExecution FailureKind = "execution_failure"
	// KindTransport: the channel to the caller is unavailable.
	KindTransport FailureKind = "transport_error"
	// KindTimeout: the command exceeded its overall bound.
	KindTimeout FailureKind = "timeout"
)

// Failure is a typed command failure.
type Failure struct {
	Kind    FailureKind
	Message string
	wrapped error
}

func (f *Failure) Error() string {
	if f.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.wrapped)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.wrapped }

// Validationf builds a validation failure.
func Validationf(format string, args ...interface{}) *Failure {
	return &Failure{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// TargetNotFound builds a stale/unknown-index failure.
func TargetNotFound(index int, cause error) *Failure {
	return &Failure{
		Kind:    KindTargetNotFound,
		Message: fmt.Sprintf("index %d does not resolve against the current snapshot", index),
		wrapped: cause,
	}
}

// ExecutionFailed builds an exhausted-fallback failure.
func ExecutionFailed(msg string, cause error) *Failure {
	return &Failure{Kind: KindExecution, Message: msg, wrapped: cause}
}

// Timeoutf builds an overall-bound failure.
func Timeoutf(format string, args ...interface{}) *Failure {
	return &Failure{Kind: KindTimeout, Message: fmt.Sprintf(format, args...)}
}
