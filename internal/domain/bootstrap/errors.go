package bootstrap

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode identifies the failure categories a step or driver can surface.
type ErrorCode string

const (
	ErrCodeUnreachable      ErrorCode = "UNREACHABLE"
	ErrCodeHTTP             ErrorCode = "HTTP_ERROR"
	ErrCodeTokenNotFound    ErrorCode = "TOKEN_NOT_FOUND"
	ErrCodeSelectorNotFound ErrorCode = "SELECTOR_NOT_FOUND"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeDependency       ErrorCode = "DEPENDENCY_MISSING"
	ErrCodeCancelled        ErrorCode = "CANCELLED"
	ErrCodeValidation       ErrorCode = "VALIDATION"
	ErrCodeInternal         ErrorCode = "INTERNAL"
)

// Sentinels usable with errors.Is; matching is by code only.
var (
	ErrUnreachable      = &Error{Code: ErrCodeUnreachable}
	ErrHTTP             = &Error{Code: ErrCodeHTTP}
	ErrTokenNotFound    = &Error{Code: ErrCodeTokenNotFound}
	ErrSelectorNotFound = &Error{Code: ErrCodeSelectorNotFound}
	ErrNotFound         = &Error{Code: ErrCodeNotFound}
	ErrConflict         = &Error{Code: ErrCodeConflict}
	ErrDependency       = &Error{Code: ErrCodeDependency}
	ErrCancelled        = &Error{Code: ErrCodeCancelled}
)

// Error is the typed error carried between drivers, steps and the runner.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = "unspecified"
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error with the same code. A target carrying a message or
// status must match those too.
func (e *Error) Is(target error) bool {
	var other *Error
	if e == nil || !errors.As(target, &other) || other == nil {
		return false
	}
	if e.Code != other.Code {
		return false
	}
	if other.Message != "" && other.Message != e.Message {
		return false
	}
	if other.Status != 0 && other.Status != e.Status {
		return false
	}
	return true
}

// WithContext clones the error with additional contextual metadata.
func (e *Error) WithContext(ctx map[string]interface{}) *Error {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Status:  e.Status,
		Cause:   e.Cause,
		Context: merged,
	}
}

func newError(code ErrorCode, message string, cause error, context map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Context: context}
}

// NewUnreachable reports that the target did not answer a request in time.
func NewUnreachable(url string, cause error) *Error {
	return newError(ErrCodeUnreachable, "target did not respond", cause, map[string]interface{}{
		"url": url,
	})
}

// NewHTTPError reports a response whose status the caller does not accept.
func NewHTTPError(method, path string, status int, body string) *Error {
	err := newError(ErrCodeHTTP, fmt.Sprintf("%s %s failed", method, path), nil, map[string]interface{}{
		"method": method,
		"path":   path,
	})
	err.Status = status
	if body != "" {
		err.Context["body"] = truncate(body, 512)
	}
	return err
}

// NewTokenNotFound reports a missing anti-forgery token on a page that needs one.
func NewTokenNotFound(url string) *Error {
	return newError(ErrCodeTokenNotFound, "anti-forgery token not found", nil, map[string]interface{}{
		"url": url,
	})
}

// NewSelectorNotFound reports that none of a field's candidates matched.
func NewSelectorNotFound(field string, candidates []string) *Error {
	return newError(ErrCodeSelectorNotFound, fmt.Sprintf("no candidate matched field %q", field), nil, map[string]interface{}{
		"field":      field,
		"candidates": append([]string(nil), candidates...),
	})
}

// NewNotFound reports a value the extractor could not locate.
func NewNotFound(what string) *Error {
	return newError(ErrCodeNotFound, what+" not found", nil, nil)
}

// NewConflict reports a create call rejected because the resource exists.
func NewConflict(resource, name string, cause error) *Error {
	return newError(ErrCodeConflict, fmt.Sprintf("%s %q already exists", resource, name), cause, map[string]interface{}{
		"resource": resource,
		"name":     name,
	})
}

// NewDependencyMissing reports an earlier step's result that is absent.
func NewDependencyMissing(message string, context map[string]interface{}) *Error {
	return newError(ErrCodeDependency, message, nil, context)
}

// NewCancelled wraps a context cancellation.
func NewCancelled(cause error) *Error {
	return newError(ErrCodeCancelled, "operation cancelled", cause, nil)
}

// NewValidationError reports invalid input to the domain.
func NewValidationError(message string, context map[string]interface{}) *Error {
	return newError(ErrCodeValidation, message, nil, context)
}

// NewInternal wraps an unexpected failure.
func NewInternal(message string, cause error) *Error {
	return newError(ErrCodeInternal, message, cause, nil)
}

// CodeOf returns the code of the first *Error in the chain. Bare context
// errors map to ErrCodeCancelled, anything else to ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeCancelled
	}
	return ErrCodeInternal
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Status
	}
	return 0
}

// IsTransient reports whether err may succeed on retry: the target was
// unreachable or answered with a 5xx.
func IsTransient(err error) bool {
	switch CodeOf(err) {
	case ErrCodeUnreachable:
		return true
	case ErrCodeHTTP:
		return StatusOf(err) >= 500
	default:
		return false
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
