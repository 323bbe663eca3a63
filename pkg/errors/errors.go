// Package errors holds the configuration-layer error types. Runtime errors
// against the target use the domain error in internal/domain/bootstrap.
package errors

import (
	"fmt"
)

// ConfigError represents a configuration file or environment failure with
// optional location metadata.
type ConfigError struct {
	Path    string
	Field   string
	Line    int
	Message string
	Err     error
}

// NewConfigError constructs a ConfigError for path.
func NewConfigError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ConfigError{Path: path, Line: line, Message: message, Err: err}
}

// NewEnvError reports an environment override that could not be applied.
func NewEnvError(variable, message string, err error) error {
	return &ConfigError{Path: "environment", Field: variable, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	where := e.Path
	if e.Line > 0 {
		where = fmt.Sprintf("%s:%d", where, e.Line)
	}
	if e.Field != "" {
		where = fmt.Sprintf("%s: %s", where, e.Field)
	}
	return fmt.Sprintf("config error: %s: %s", where, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures a configuration value that failed validation.
// Field uses the YAML key path; Line is 0 when the value did not come from
// a file.
type ValidationError struct {
	Field   string
	Line    int
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// AtLine returns a copy of e located at line.
func (e *ValidationError) AtLine(line int) *ValidationError {
	clone := *e
	clone.Line = line
	return &clone
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Field != "" && e.Line > 0:
		return fmt.Sprintf("validation error: %s (line %d): %s", e.Field, e.Line, e.Message)
	case e.Field != "":
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	default:
		return fmt.Sprintf("validation error: %s", e.Message)
	}
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
