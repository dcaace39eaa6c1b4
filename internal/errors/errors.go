package errors

import (
	"errors"
	"fmt"
)

// QAError is the structured error type used across pdfqa.
// It carries enough context for logging, CLI output and RPC error mapping.
type QAError struct {
	// Code is the unique error code (e.g., "ERR_207_DOCUMENT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates the operation can be attempted again.
	Retryable bool

	// Suggestion is an actionable hint for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *QAError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *QAError) Unwrap() error {
	return e.Cause
}

// Is matches another QAError by code so errors.Is works against the
// sentinel values below.
func (e *QAError) Is(target error) bool {
	if t, ok := target.(*QAError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *QAError) WithDetail(key, value string) *QAError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *QAError) WithSuggestion(suggestion string) *QAError {
	e.Suggestion = suggestion
	return e
}

// New creates a QAError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *QAError {
	return &QAError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QAError from an existing error, reusing its message.
func Wrap(code string, err error) *QAError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *QAError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a persistence error.
func StoreError(message string, cause error) *QAError {
	return New(ErrCodeStoreFailed, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *QAError {
	return New(ErrCodeNetworkTimeout, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *QAError {
	return New(ErrCodeInvalidInput, message, cause)
}

// NotFoundError reports a missing document.
func NotFoundError(documentID string) *QAError {
	return New(ErrCodeDocumentNotFound, "document not found", nil).
		WithDetail("document_id", documentID)
}

// ForbiddenError reports an ownership mismatch.
func ForbiddenError(documentID string) *QAError {
	return New(ErrCodeForbidden, "forbidden", nil).
		WithDetail("document_id", documentID)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *QAError {
	return New(ErrCodeInternal, message, cause)
}

// As returns the first QAError in err's chain.
func As(err error) (*QAError, bool) {
	var qe *QAError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// IsRetryable reports whether any QAError in the chain is retryable.
func IsRetryable(err error) bool {
	if qe, ok := As(err); ok {
		return qe.Retryable
	}
	return false
}

// IsFatal reports whether the error has fatal severity.
func IsFatal(err error) bool {
	if qe, ok := As(err); ok {
		return qe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" when err carries none.
func GetCode(err error) string {
	if qe, ok := As(err); ok {
		return qe.Code
	}
	return ""
}

// GetCategory extracts the category, or "" when err carries none.
func GetCategory(err error) Category {
	if qe, ok := As(err); ok {
		return qe.Category
	}
	return ""
}
