// Package domainerrors provides coded errors for the scheduling core.
//
// Every error a service returns to the transport layer carries exactly one
// Code so callers can distinguish "retry me" (CodeTransitionAborted) from
// "fix your request" (domain-rule codes) from "you can't do this"
// (authorization codes) without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain error.
type Code string

const (
	// Authorization failures. Never retried.
	CodeNotAuthenticated  Code = "not_authenticated"
	CodeWrongOrganization Code = "wrong_organization"
	CodeWrongRole         Code = "wrong_role"
	CodeWrongOwner        Code = "wrong_owner"

	// Domain-rule violations. The caller must change the request.
	CodeSlotUnavailable       Code = "slot_unavailable"
	CodeInvalidTransition     Code = "invalid_transition"
	CodeCourseFull            Code = "course_full"
	CodeDuplicateRegistration Code = "duplicate_registration"
	CodeDuplicatePayment      Code = "duplicate_payment"
	CodeCourseNotCompleted    Code = "course_not_completed"

	// CodeTransitionAborted signals a concurrency conflict: the guarded
	// update observed a different prior state. Safe to retry with backoff.
	CodeTransitionAborted Code = "transition_aborted"

	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal"
)

// Error is a coded domain error. Construct via New or Wrap.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

// IsRetryable reports whether the caller may retry the same request as-is.
func IsRetryable(err error) bool {
	return HasCode(err, CodeTransitionAborted)
}
