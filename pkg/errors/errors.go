// Package errors defines the typed error every layer returns so the HTTP
// edge can map it to a status and a safe public body.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

type exposure uint8

const (
	showMessage exposure = 1 << iota
	showDetails
)

type policy struct {
	status    int
	retryable bool
	fallback  string
	show      exposure
}

var policies = map[Code]policy{
	CodeValidation:    {status: http.StatusBadRequest, fallback: "validation failed", show: showMessage | showDetails},
	CodeUnauthorized:  {status: http.StatusUnauthorized, fallback: "authentication required", show: showMessage},
	CodeForbidden:     {status: http.StatusForbidden, fallback: "access denied", show: showMessage},
	CodeNotFound:      {status: http.StatusNotFound, fallback: "resource not found", show: showMessage},
	CodeConflict:      {status: http.StatusConflict, fallback: "conflict detected", show: showMessage},
	CodeStateConflict: {status: http.StatusUnprocessableEntity, fallback: "state transition disallowed", show: showMessage | showDetails},
	CodeIdempotency:   {status: http.StatusConflict, fallback: "idempotency key reused", show: showMessage | showDetails},
	CodeRateLimit:     {status: http.StatusTooManyRequests, retryable: true, fallback: "rate limit exceeded", show: showMessage | showDetails},
	CodeTooLarge:      {status: http.StatusRequestEntityTooLarge, fallback: "payload too large", show: showMessage | showDetails},
	CodeInternal:      {status: http.StatusInternalServerError, retryable: true, fallback: "internal server error"},
	CodeDependency:    {status: http.StatusServiceUnavailable, retryable: true, fallback: "dependency unavailable", show: showDetails},
}

func policyFor(code Code) policy {
	if p, ok := policies[code]; ok {
		return p
	}
	return policies[CodeInternal]
}

// Public is what an API caller may see of an error.
type Public struct {
	Code      Code
	Status    int
	Message   string
	Details   any
	Retryable bool
}

// Present reduces err to its public form. Errors without a Code are treated
// as CodeInternal and reveal nothing of their text.
func Present(err error) Public {
	typed := As(err)
	if typed == nil {
		typed = &Error{code: CodeInternal}
	}
	p := policyFor(typed.code)
	out := Public{Code: typed.code, Status: p.status, Message: p.fallback, Retryable: p.retryable}
	if _, known := policies[typed.code]; !known {
		out.Code = CodeInternal
		return out
	}
	if p.show&showMessage != 0 && typed.message != "" {
		out.Message = typed.message
	}
	if p.show&showDetails != 0 {
		out.Details = typed.details
	}
	return out
}

// StatusOf is the HTTP status Present would choose.
func StatusOf(err error) int { return Present(err).Status }

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause; a nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets structured context and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
