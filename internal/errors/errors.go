package errors

import (
	"errors"
	"fmt"
)

// AssetError is the structured error type for assetcache.
// It carries enough context for logging, CLI output, and errors.Is matching.
type AssetError struct {
	// Code is the unique error code (e.g., "ERR_201_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates a later pass may succeed.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Sentinel errors for errors.Is comparisons. Matching is by code only.
var (
	ErrNotFound        = &AssetError{Code: ErrCodeNotFound}
	ErrIllegalArgument = &AssetError{Code: ErrCodeIllegalArgument}
	ErrIllegalState    = &AssetError{Code: ErrCodeIllegalState}
	ErrConfig          = &AssetError{Code: ErrCodeConfigInvalid}
	ErrUnsupportedHash = &AssetError{Code: ErrCodeUnsupportedHashAlgo}
	ErrTransientIO     = &AssetError{Code: ErrCodeTransientIO}
)

// Error implements the error interface.
func (e *AssetError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AssetError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *AssetError) Is(target error) bool {
	if t, ok := target.(*AssetError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AssetError) WithDetail(key, value string) *AssetError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AssetError) WithSuggestion(suggestion string) *AssetError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AssetError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AssetError {
	return &AssetError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AssetError from an existing error.
func Wrap(code string, err error) *AssetError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound reports an unknown root, unknown asset, or a vanished file.
func NotFound(message string, cause error) *AssetError {
	return New(ErrCodeNotFound, message, cause)
}

// IllegalArgument reports a URI that resolves outside its declared root.
func IllegalArgument(message string, cause error) *AssetError {
	return New(ErrCodeIllegalArgument, message, cause)
}

// IllegalState reports a path with no owning registered root.
func IllegalState(message string, cause error) *AssetError {
	return New(ErrCodeIllegalState, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AssetError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates a transient I/O error. These are logged and retried on a later pass.
func IOError(message string, cause error) *AssetError {
	return New(ErrCodeTransientIO, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AssetError anywhere in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AssetError anywhere in the chain.
func GetCategory(err error) Category {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
