package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewDomainError for component-specific errors.
var (
	ErrInvalidInput = fmt.Errorf("invalid input")
	ErrLaunchFailed = fmt.Errorf("launch failed")
	ErrNotFound     = fmt.Errorf("not found")
	ErrTimeout      = fmt.Errorf("operation timed out")
	ErrInternal     = fmt.Errorf("internal error")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Resolve")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ErrorCode is a machine-parseable error category for callers and monitoring.
type ErrorCode string

const (
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeLaunchFailed  ErrorCode = "LAUNCH_FAILED"
	CodeNotFound      ErrorCode = "NOT_FOUND"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrInvalidInput: CodeInvalidInput,
	ErrLaunchFailed: CodeLaunchFailed,
	ErrNotFound:     CodeNotFound,
	ErrTimeout:      CodeTimeout,
	ErrInternal:     CodeInternalError,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and LaunchError and uses errors.Is to match sentinels.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Code
	}
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}

// IsRetriable reports whether callers may legitimately retry after err,
// for example with adjusted timeouts or a different preset.
func IsRetriable(err error) bool {
	var le *LaunchError
	if errors.As(err, &le) {
		return le.Retriable
	}
	return errors.Is(err, ErrLaunchFailed)
}

// LaunchError is the terminal error raised by the orchestrator. It carries
// the full diagnostics bundle plus remediation guidance so callers never
// need to re-query the failed attempt.
type LaunchError struct {
	Code      ErrorCode
	Message   string
	Retriable bool
	Cause     error

	Preset        string
	PresetVersion string
	Hints         []string          // preset static hints + matched playbook titles
	Playbooks     []FailurePlaybook // full matched playbooks, ordered
	Diagnostics   *DiagnosticsBundle
}

func (e *LaunchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LaunchError) Unwrap() error { return e.Cause }

// NewLaunchError creates a retriable LAUNCH_FAILED error. Annotation fields
// (hints, playbooks, diagnostics) are filled in by the orchestrator.
func NewLaunchError(message string, cause error) *LaunchError {
	return &LaunchError{
		Code:      CodeLaunchFailed,
		Message:   message,
		Retriable: true,
		Cause:     cause,
	}
}
