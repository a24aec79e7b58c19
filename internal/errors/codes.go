// Package errors provides structured error handling for meilihook.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (entry files, local index files)
//   - 3XX: Network errors (search index transport)
//   - 4XX: Validation errors
//   - 5XX: Internal and index errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates internal and index-side errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates an unrecoverable error.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeUnknownBackend   = "ERR_103_UNKNOWN_BACKEND"
	ErrCodeDaemonLocked     = "ERR_104_DAEMON_LOCKED"

	// IO errors (200-299)
	ErrCodeFileRead     = "ERR_201_FILE_READ"
	ErrCodeCorruptIndex = "ERR_202_CORRUPT_INDEX"
	ErrCodeIndexClosed  = "ERR_203_INDEX_CLOSED"

	// Network errors (300-399)
	ErrCodeIndexTimeout     = "ERR_301_INDEX_TIMEOUT"
	ErrCodeIndexUnreachable = "ERR_302_INDEX_UNREACHABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidEntry = "ERR_402_INVALID_ENTRY"
	ErrCodeMissingID    = "ERR_403_MISSING_ID"

	// Internal and index errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeIndexRejected = "ERR_502_INDEX_REJECTED"
	ErrCodeIndexFailed   = "ERR_503_INDEX_FAILED"
	ErrCodeSearchFailed  = "ERR_504_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
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

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeDaemonLocked:
		return SeverityFatal
	case ErrCodeIndexTimeout, ErrCodeIndexUnreachable:
		return SeverityWarning
	}
	return SeverityError
}
