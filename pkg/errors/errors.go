package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies a ProvisionError. Tests and callers branch on the
// code, never on the message.
type ErrorCode string

const (
	ErrUnknown  ErrorCode = "UNKNOWN"
	ErrInternal ErrorCode = "INTERNAL"

	// ErrInput covers the user list: missing, malformed, or a record
	// without a usable username.
	ErrInput ErrorCode = "INPUT"

	// ErrFilesystem covers directory creation, enumeration and copy failures.
	ErrFilesystem ErrorCode = "FILESYSTEM"

	ErrConfig   ErrorCode = "CONFIG"
	ErrDatabase ErrorCode = "DATABASE"
)

// Detail keys shared by the packages that build ProvisionErrors.
const (
	DetailPath  = "path"
	DetailUser  = "user"
	DetailIndex = "index"
)

// ProvisionError carries a code, a message, diagnostic details such as the
// failing path or user, and the underlying cause.
type ProvisionError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

func (e *ProvisionError) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
}

func (e *ProvisionError) Unwrap() error {
	return e.Wrapped
}

// Is matches any ProvisionError with the same code.
func (e *ProvisionError) Is(target error) bool {
	var other *ProvisionError
	return errors.As(target, &other) && other.Code == e.Code
}

// WithDetail records key=value on the error and returns it for chaining.
func (e *ProvisionError) WithDetail(key string, value interface{}) *ProvisionError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func build(cause error, code ErrorCode, message string) *ProvisionError {
	return &ProvisionError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: cause,
	}
}

// New creates a ProvisionError without a cause.
func New(code ErrorCode, message string) *ProvisionError {
	return build(nil, code, message)
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *ProvisionError {
	return build(nil, code, fmt.Sprintf(format, args...))
}

// Wrap attaches a code and message to err. A nil err gives nil.
func Wrap(err error, code ErrorCode, message string) *ProvisionError {
	if err == nil {
		return nil
	}
	return build(err, code, message)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *ProvisionError {
	if err == nil {
		return nil
	}
	return build(err, code, fmt.Sprintf(format, args...))
}

// IsErrorCode reports whether the outermost ProvisionError in err has code.
func IsErrorCode(err error, code ErrorCode) bool {
	var provErr *ProvisionError
	return errors.As(err, &provErr) && provErr.Code == code
}

// GetErrorCode returns the code of the outermost ProvisionError in err,
// or ErrUnknown.
func GetErrorCode(err error) ErrorCode {
	var provErr *ProvisionError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details of the outermost ProvisionError in
// err, or nil.
func GetErrorDetails(err error) map[string]interface{} {
	var provErr *ProvisionError
	if errors.As(err, &provErr) {
		return provErr.Details
	}
	return nil
}

// Diagnostic renders the error for the user: the message followed by the
// sorted details, e.g. `[FILESYSTEM] copy failed (path=users/alice, user=alice)`.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	details := GetErrorDetails(err)
	if len(details) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return fmt.Sprintf("%s (%s)", err.Error(), strings.Join(parts, ", "))
}
