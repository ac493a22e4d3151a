package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes produced locally. Server codes (not_found, conflict, validation
// codes, ...) pass through unchanged.
const (
	CodeHTTP            = "http_error"
	CodeInvalidResponse = "invalid_response"
	CodeInternal        = "internal"
	CodeFallback        = "rspc_error"
)

// Error is the single error shape surfaced by the transport.
type Error struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	RequestID   string            `json:"request_id"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Hint        string            `json:"hint,omitempty"`

	// Status is the HTTP status observed for the call, zero when no response arrived.
	Status int `json:"-"`

	cause error
}

// Error implements error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request %s)", e.RequestID)
	}
	return b.String()
}

// Unwrap exposes the underlying cause, if any (for example context.Canceled).
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	dup := *e
	dup.cause = cause
	return &dup
}

// FieldError returns the message bound to field, if any.
func (e *Error) FieldError(field string) (string, bool) {
	if e == nil || e.FieldErrors == nil {
		return "", false
	}
	msg, ok := e.FieldErrors[field]
	return msg, ok
}

// New builds an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// HTTP builds an http_error for a transport or parse failure.
func HTTP(message string, status int, requestID string, cause error) *Error {
	return &Error{
		Code:      CodeHTTP,
		Message:   message,
		RequestID: requestID,
		Status:    status,
		cause:     cause,
	}
}

// InvalidResponse builds an invalid_response error.
func InvalidResponse(message string, status int, requestID string) *Error {
	return &Error{
		Code:      CodeInvalidResponse,
		Message:   message,
		RequestID: requestID,
		Status:    status,
	}
}

// As reports whether err is (or wraps) an *Error.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCode reports whether err is an *Error carrying code.
func IsCode(err error, code string) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Code == code
}
