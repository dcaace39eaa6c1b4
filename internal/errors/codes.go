// Package errors provides structured error handling for pdfqa.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO and persistence errors
//   - 3XX: Network and indexing backend errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// IO and store errors (200-299)
	ErrCodeFileNotFound     = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission   = "ERR_202_FILE_PERMISSION"
	ErrCodeStoreCorrupt     = "ERR_203_STORE_CORRUPT"
	ErrCodeFileTooLarge     = "ERR_204_FILE_TOO_LARGE"
	ErrCodeStoreFailed      = "ERR_205_STORE_FAILED"
	ErrCodeFileCorrupt      = "ERR_206_FILE_CORRUPT"
	ErrCodeDocumentNotFound = "ERR_207_DOCUMENT_NOT_FOUND"

	// Network and backend errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeBackendRejected    = "ERR_303_BACKEND_REJECTED"
	ErrCodeRateLimited        = "ERR_304_RATE_LIMITED"
	ErrCodeBackendNotFound    = "ERR_305_BACKEND_NOT_FOUND"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeUnsupportedType = "ERR_402_UNSUPPORTED_TYPE"
	ErrCodeForbidden       = "ERR_403_FORBIDDEN"
	ErrCodeQueryEmpty      = "ERR_404_QUERY_EMPTY"
	ErrCodeQueryTooLong    = "ERR_405_QUERY_TOO_LONG"
	ErrCodeInvalidPath     = "ERR_406_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeCollectionFailed = "ERR_502_COLLECTION_FAILED"
	ErrCodeUploadFailed     = "ERR_503_UPLOAD_FAILED"
	ErrCodeJobFailed        = "ERR_504_JOB_FAILED"
	ErrCodeReconcileFailed  = "ERR_505_RECONCILE_FAILED"
)

// categoryFromCode extracts the category from the numeric part of a code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "207" from "ERR_207_DOCUMENT_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreCorrupt, ErrCodeConfigPermission:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether a code represents a transient failure.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeRateLimited:
		return true
	default:
		return false
	}
}
