package types

import "fmt"

// ConfigErrorKind distinguishes the construction-time failure modes
// reported under ConfigError.
type ConfigErrorKind string

const (
	ConfigErrorParse             ConfigErrorKind = "parse"
	ConfigErrorSchema            ConfigErrorKind = "schema"
	ConfigErrorInvalidExpression ConfigErrorKind = "invalid_expression"
	ConfigErrorUnknownOperator   ConfigErrorKind = "unknown_operator"
)

// ConfigError reports a construction-time failure, carrying the offending
// workflow/task id so callers can locate it in their source document.
type ConfigError struct {
	Kind       ConfigErrorKind
	WorkflowID string
	TaskID     string
	Path       string
	Reason     string
	Cause      error
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func (e *ConfigError) Error() string {
	loc := e.WorkflowID
	if e.TaskID != "" {
		loc = fmt.Sprintf("%s/%s", loc, e.TaskID)
	}
	if loc == "" {
		return fmt.Sprintf("config error (%s): %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("config error (%s) at %s: %s", e.Kind, loc, e.Reason)
}

// ExecutionErrorKind distinguishes the runtime failure modes reported
// under ExecutionError.
type ExecutionErrorKind string

const (
	ExecutionErrorUnknownFunction ExecutionErrorKind = "unknown_function"
	ExecutionErrorParse           ExecutionErrorKind = "parse"
	ExecutionErrorEvaluation      ExecutionErrorKind = "evaluation"
	ExecutionErrorHandler         ExecutionErrorKind = "handler"
)

// ExecutionError reports a handler-level failure during process_message.
// Its Kind becomes the Code of the ErrorInfo appended to the message.
type ExecutionError struct {
	Kind   ExecutionErrorKind
	Reason string
	Cause  error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// NewExecutionError builds an ExecutionError of the given kind.
func NewExecutionError(kind ExecutionErrorKind, reason string, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Reason: reason, Cause: cause}
}
