package errors

import (
	"fmt"
	"strings"
)

// ParseError represents a configuration parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CommandError represents a failed external tool invocation. It carries the
// offending command line, the exit status, and the captured stderr so the
// failure can be reported without re-running the tool.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

// NewCommandError constructs a CommandError for the given command line.
func NewCommandError(command string, exitCode int, stderr string, err error) error {
	return &CommandError{Command: command, ExitCode: exitCode, Stderr: strings.TrimSpace(stderr), Err: err}
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("command failed: %s (exit %d)", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Unwrap exposes the underlying error.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StateError indicates a problem reading or writing the persisted state file.
type StateError struct {
	Path    string
	Message string
	Err     error
}

// NewStateError constructs a StateError.
func NewStateError(path, message string, err error) error {
	return &StateError{Path: path, Message: message, Err: err}
}

func (e *StateError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path != "" {
		return fmt.Sprintf("state error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *StateError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
