// Package errs defines the error kinds shared across the archival pipeline.
//
// Kinds are not a type hierarchy; they are a closed set of labels attached to
// an underlying error so callers (mainly the pipeline orchestrator) can
// decide whether to retry, skip, or abort without type-switching on
// concrete error types from every package.
package errs

import "fmt"

// Kind labels an error for batch/orchestrator dispatch.
type Kind string

const (
	InputParseError      Kind = "input_parse_error"
	InputTooLarge        Kind = "input_too_large"
	SchemaValidationErr  Kind = "schema_validation_error"
	PathSecurityError    Kind = "path_security_error"
	CollisionError       Kind = "collision_error"
	IOError              Kind = "io_error"
	LockTimeout          Kind = "lock_timeout"
	DataIntegrityError   Kind = "data_integrity_error"
	WorkflowNotFound     Kind = "workflow_not_found"
	WorkflowConfigError  Kind = "workflow_config_error"
	AdvisorError         Kind = "advisor_error"
	RendererError        Kind = "renderer_error"
	Transient            Kind = "transient"
)

// Error wraps an underlying error with a Kind and the operation it occurred
// in.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation label. Returns nil if err
// is nil, so call sites can write `return errs.New(..., err)` unconditionally.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Of returns the Kind of err if it (or something it wraps) is an *Error,
// and ok=false otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if ok := As(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

// As is a small local wrapper to avoid importing errors in every call site
// that just wants the Kind.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsRetryable reports whether err is tagged Transient and thus eligible for
// the orchestrator's exponential backoff.
func IsRetryable(err error) bool {
	k, ok := Of(err)
	return ok && k == Transient
}

// IsPermanent reports whether err belongs to the permanent, per-item class
// that batches should log, skip, and continue past.
func IsPermanent(err error) bool {
	k, ok := Of(err)
	if !ok {
		return false
	}
	switch k {
	case InputParseError, SchemaValidationErr, WorkflowNotFound, WorkflowConfigError,
		PathSecurityError, InputTooLarge:
		return true
	default:
		return false
	}
}
