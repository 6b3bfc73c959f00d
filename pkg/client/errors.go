package client

import (
	"errors"
	"fmt"

	"github.com/digitalhub/dhsdk/pkg/entity"
)

// ErrorKind classifies a backend failure. Callers branch on the kind, never
// on which Client produced the error.
type ErrorKind string

const (
	// KindNotFound indicates the addressed object does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindConflict indicates the object already exists.
	KindConflict ErrorKind = "conflict"

	// KindUnavailable indicates the backend could not be reached or failed.
	KindUnavailable ErrorKind = "unavailable"

	// KindAuthExpired indicates the credentials were rejected.
	KindAuthExpired ErrorKind = "auth_expired"

	// KindIncompatible indicates the backend speaks an unsupported API level.
	KindIncompatible ErrorKind = "incompatible"

	// KindInternal indicates an unexpected condition such as a malformed body.
	KindInternal ErrorKind = "internal"
)

// Sentinels for errors.Is checks.
var (
	ErrNotFound     = &BackendError{Kind: KindNotFound}
	ErrConflict     = &BackendError{Kind: KindConflict}
	ErrUnavailable  = &BackendError{Kind: KindUnavailable}
	ErrAuthExpired  = &BackendError{Kind: KindAuthExpired}
	ErrIncompatible = &BackendError{Kind: KindIncompatible}
	ErrInternal     = &BackendError{Kind: KindInternal}
)

// BackendError is the single error type returned by every Client.
type BackendError struct {
	Kind       ErrorKind
	Message    string
	Op         string
	EntityType entity.Type
	Ref        string
	Status     int
	Err        error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Kind, e.Op, e.Message)
	}
	if e.EntityType != "" || e.Ref != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.EntityType, e.Ref)
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s [status %d]", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches any BackendError of the same kind.
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, message string, err error) *BackendError {
	return &BackendError{Kind: kind, Message: message, Err: err}
}

// NewNotFoundError creates a not-found error for an entity reference.
func NewNotFoundError(t entity.Type, ref string) *BackendError {
	return &BackendError{
		Kind:       KindNotFound,
		Message:    "object not found",
		EntityType: t,
		Ref:        ref,
	}
}

// NewConflictError creates a conflict error for an entity reference.
func NewConflictError(t entity.Type, ref string) *BackendError {
	return &BackendError{
		Kind:       KindConflict,
		Message:    "object already exists",
		EntityType: t,
		Ref:        ref,
	}
}

// WithOp records the client operation that failed.
func (e *BackendError) WithOp(op string) *BackendError {
	e.Op = op
	return e
}

// WithStatus records the HTTP status of the failed call.
func (e *BackendError) WithStatus(status int) *BackendError {
	e.Status = status
	return e
}

// WithEntity records the entity the failed call addressed.
func (e *BackendError) WithEntity(t entity.Type, ref string) *BackendError {
	e.EntityType = t
	e.Ref = ref
	return e
}

// KindOf returns the kind of a BackendError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *BackendError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not-found BackendError.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a conflict BackendError.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsUnavailable reports whether err is an unavailable BackendError.
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }

// IsAuthExpired reports whether err is an auth-expired BackendError.
func IsAuthExpired(err error) bool { return KindOf(err) == KindAuthExpired }

// IsIncompatible reports whether err is an incompatible-version BackendError.
func IsIncompatible(err error) bool { return KindOf(err) == KindIncompatible }
