// Package errors provides the standardized error type shared by the
// analytics tools, the agent and the HTTP layer.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeConfiguration            ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeUnknownTemplate          ErrorCode = "UNKNOWN_TEMPLATE"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSynthesisFailed          ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeChartBuildFailed         ErrorCode = "CHART_BUILD_FAILED"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT"
	ErrCodeInvalidRequest           ErrorCode = "INVALID_REQUEST"
	ErrCodeInvalidToolArguments     ErrorCode = "INVALID_TOOL_ARGUMENTS"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigurationError reports missing or unusable configuration, such as
// absent language model credentials.
func NewConfigurationError(details string) *StandardError {
	return newError(ErrCodeConfiguration, "Language model is not configured", details, false, nil)
}

// NewUnknownTemplateError is returned by the template store for names outside the enum.
func NewUnknownTemplateError(name string) *StandardError {
	return newError(ErrCodeUnknownTemplate, "Query template not allowed",
		fmt.Sprintf("template: %s", name), false, nil)
}

// NewQueryExecutionError wraps a backend failure or a rejected statement.
func NewQueryExecutionError(source string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Query execution failed",
		fmt.Sprintf("source: %s, error: %s", source, causeText(err)), true, err)
}

// NewQueryRejectedError reports a statement refused by the read-only guard.
func NewQueryRejectedError(reason string) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Statement rejected: only a single read-only SELECT is allowed",
		reason, false, nil)
}

// NewSynthesisError reports a language model failure while drafting SQL.
func NewSynthesisError(err error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "Query synthesis failed", causeText(err), true, err)
}

// NewChartBuildError wraps a failure while shaping a chart.
func NewChartBuildError(err error) *StandardError {
	return newError(ErrCodeChartBuildFailed, "Chart construction failed", causeText(err), false, err)
}

// NewTimeoutError reports an exceeded ceiling in the named stage.
func NewTimeoutError(stage string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("%s exceeded its time limit", stage),
		causeText(err), true, err)
}

// NewInvalidRequestError reports a malformed client request.
func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, false, nil)
}

// NewInvalidToolArgumentsError reports tool arguments that do not match the tool schema.
func NewInvalidToolArgumentsError(tool, details string) *StandardError {
	return newError(ErrCodeInvalidToolArguments, fmt.Sprintf("Invalid arguments for tool %s", tool),
		details, false, nil)
}

// NewDatabaseConnectionFailedError reports an unreachable dataset.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", causeText(err), true, err)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", causeText(err), false, err)
}

// ==========================
// 3. Inspection helpers
// ==========================

// AsStandard normalizes any error to a StandardError. Context deadline errors
// become TIMEOUT, everything unknown becomes INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("operation", err)
	}
	return NewInternalError(err)
}

// CodeOf returns the error code of err, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeQueryExecutionFailed, ErrCodeSynthesisFailed, ErrCodeTimeout, ErrCodeDatabaseConnectionFailed:
		return true
	default:
		return false
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SYNTHESIS"):
		return "AI"
	case strings.Contains(codeStr, "CHART"):
		return "VISUALIZATION"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
