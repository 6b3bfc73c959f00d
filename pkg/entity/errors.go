package entity

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the condition an EntityError reports.
type ErrorCode string

const (
	// CodeMissingField indicates a required field was empty.
	CodeMissingField ErrorCode = "MISSING_FIELD"

	// CodeUnsupported indicates the operation is not available for this kind.
	CodeUnsupported ErrorCode = "UNSUPPORTED_OPERATION"

	// CodeNotTracked indicates a task or run that the engine does not know.
	CodeNotTracked ErrorCode = "NOT_TRACKED"

	// CodeStateMismatch indicates a run is not in the state an operation requires.
	CodeStateMismatch ErrorCode = "STATE_MISMATCH"

	// CodeInvalidKey indicates a malformed store:// key.
	CodeInvalidKey ErrorCode = "INVALID_KEY"
)

// Sentinels for errors.Is checks against an EntityError code.
var (
	ErrMissingField  = &EntityError{Code: CodeMissingField}
	ErrUnsupported   = &EntityError{Code: CodeUnsupported}
	ErrNotTracked    = &EntityError{Code: CodeNotTracked}
	ErrStateMismatch = &EntityError{Code: CodeStateMismatch}
	ErrInvalidKey    = &EntityError{Code: CodeInvalidKey}
)

// EntityError reports a problem with an entity itself rather than with the
// backend holding it.
// nolint:revive // EntityError is intentionally named to distinguish from BackendError
type EntityError struct {
	Code       ErrorCode
	Message    string
	EntityType Type
	Ref        string
	Err        error
}

// Error implements the error interface.
func (e *EntityError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.EntityType != "" && e.Ref != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.EntityType, e.Ref)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *EntityError) Unwrap() error {
	return e.Err
}

// Is matches any EntityError carrying the same code.
func (e *EntityError) Is(target error) bool {
	t, ok := target.(*EntityError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewMissingFieldError reports an empty required field.
func NewMissingFieldError(t Type, field string) *EntityError {
	return &EntityError{
		Code:       CodeMissingField,
		Message:    fmt.Sprintf("missing required field %q", field),
		EntityType: t,
	}
}

// NewUnsupportedError reports an operation the entity kind cannot perform.
func NewUnsupportedError(t Type, kind, operation string) *EntityError {
	return &EntityError{
		Code:       CodeUnsupported,
		Message:    fmt.Sprintf("operation %s is not supported by kind %q", operation, kind),
		EntityType: t,
	}
}

// NewStateMismatchError reports a run found in an unexpected state.
func NewStateMismatchError(runID string, want, got State) *EntityError {
	return &EntityError{
		Code:       CodeStateMismatch,
		Message:    fmt.Sprintf("run must be in state %s, found %q", want, got),
		EntityType: TypeRun,
		Ref:        runID,
	}
}

// NewNotTrackedError reports a task or run reference the engine cannot
// resolve.
func NewNotTrackedError(t Type, ref string) *EntityError {
	return &EntityError{
		Code:       CodeNotTracked,
		Message:    "reference is not tracked",
		EntityType: t,
		Ref:        ref,
	}
}

// NewInvalidKeyError reports a malformed key.
func NewInvalidKeyError(key, reason string) *EntityError {
	return &EntityError{
		Code:    CodeInvalidKey,
		Message: fmt.Sprintf("invalid key %q: %s", key, reason),
	}
}

// HasCode reports whether err carries an EntityError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *EntityError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
