// Package domainerrors provides coded errors shared by services and transports.
//
// Services return *Error values created with New or Wrap. Transports translate the
// code into a status (see pkg/platform/httputil). Store layers do not use this
// package; they return pkg/platform/sentinel errors that services translate.
package domainerrors

import (
	"errors"
)

// Code classifies a domain error independently of any transport.
type Code string

const (
	CodeBadRequest     Code = "bad_request"
	CodeValidation     Code = "validation_error"
	CodeInvalidInput   Code = "invalid_input"
	CodeUnauthorized   Code = "unauthorized"
	CodeForbidden      Code = "forbidden"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeTimeout        Code = "timeout"
	CodeInternal       Code = "internal_error"
	CodeUnavailable    Code = "service_unavailable"
	CodePayloadTooBig  Code = "payload_too_large"
	CodeUnsupportedMed Code = "unsupported_media_type"

	// CodeInvariantViolation is raised by model constructors and transitions.
	// Services convert it to CodeValidation before it reaches a transport.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeNotFoundOrNotPending is the single signal returned when a decision
	// cannot be applied, whether the request is missing or already decided.
	CodeNotFoundOrNotPending Code = "not_available_for_review"
)

// Error is a coded error with a client-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and client-safe message to an underlying error.
// The underlying error stays reachable through errors.Is/As.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost coded error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost coded error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
