// Package collerr implements the closed error-kind taxonomy described in
// spec section 7: a fixed set of error kinds, each mapping to exactly one
// HTTP status code, used for control flow instead of exceptions.
package collerr

import "fmt"

// Kind is a closed sum type of the error categories the collection core
// can surface. It is never extended at call sites.
type Kind int

const (
	// KindInternal covers durable-write failures and embedder errors of
	// unrecognized shape.
	KindInternal Kind = iota
	KindBadRequest
	KindNotFound
	KindConflict
	KindUnprocessable
	KindTimeout
)

// HTTPStatus returns the status code this kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	case KindUnprocessable:
		return 422
	case KindTimeout:
		return 408
	case KindInternal:
		return 500
	default:
		return 500
	}
}

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnprocessable:
		return "unprocessable"
	case KindTimeout:
		return "timeout"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carrying a Kind, a human message, and
// an optional wrapped cause. Construct with the helpers below (BadRequest,
// NotFound, Conflict, Unprocessable, Timeout, Internal) rather than this
// struct literal directly, to keep the kind/message pairing
// intentional at call sites.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error    { return newf(KindBadRequest, format, args...) }
func NotFound(format string, args ...any) *Error      { return newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error      { return newf(KindConflict, format, args...) }
func Unprocessable(format string, args ...any) *Error { return newf(KindUnprocessable, format, args...) }
func Timeout(format string, args ...any) *Error       { return newf(KindTimeout, format, args...) }

// Internal wraps cause as a 500, the way a durable-write failure or an
// embedder error of unknown shape should surface (spec section 7).
func Internal(cause error, format string, args ...any) *Error {
	e := newf(KindInternal, format, args...)
	e.Cause = cause
	return e
}

// As extracts a *Error from err, the way a caller maps any error this
// package returns back to its Kind. Returns (nil, false) for errors that
// never went through one of this package's constructors.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errorsAs(err, &e)
	return e, ok
}

// thin indirection so this file doesn't need to import "errors" twice
// for the same symbol name as the package.
func errorsAs(err error, target **Error) bool {
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
