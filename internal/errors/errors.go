// Package errors provides structured error types for the PathSight system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"

	"github.com/pathsight/pathsight/pkg/types"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryIngest     ErrorCategory = "INGEST"
	ErrCategoryAnalysis   ErrorCategory = "ANALYSIS"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryCatalog    ErrorCategory = "CATALOG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeInvalidRunID  = "INVALID_RUN_ID"

	// Ingest codes
	CodeMalformedRecord  = "MALFORMED_RECORD"
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeUnreadableSource = "UNREADABLE_SOURCE"
	CodeUnknownFormat    = "UNKNOWN_FORMAT"

	// Analysis codes
	CodeAnalysisFailed = "ANALYSIS_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Catalog codes
	CodeRunNotFound   = "RUN_NOT_FOUND"
	CodeWriteConflict = "WRITE_CONFLICT"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PathsightError is the structured error type used throughout the system.
type PathsightError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PathsightError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PathsightError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PathsightError) Is(target error) bool {
	var t *PathsightError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PathsightError.
func New(category ErrorCategory, code, message string) *PathsightError {
	return &PathsightError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PathsightError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PathsightError {
	return &PathsightError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PathsightError) WithDetails(details map[string]interface{}) *PathsightError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PathsightError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PathsightError.
func GetCategory(err error) ErrorCategory {
	var pe *PathsightError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PathsightError.
func GetCode(err error) string {
	var pe *PathsightError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Transient transport
// failures retry; data and configuration failures never do.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryCatalog && code == CodeWriteConflict:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewConfigError(message string) *PathsightError {
	return New(ErrCategoryValidation, CodeInvalidConfig, message)
}

// NewMalformedRecordError chains types.ErrMalformedRecord into the cause so
// callers can match the data-level condition with errors.Is without importing
// this package.
func NewMalformedRecordError(message string, cause error) *PathsightError {
	if cause == nil {
		cause = types.ErrMalformedRecord
	} else {
		cause = fmt.Errorf("%w: %w", types.ErrMalformedRecord, cause)
	}
	return Wrap(ErrCategoryIngest, CodeMalformedRecord, message, cause)
}

// NewEmptyInputError carries types.ErrEmptyInput for errors.Is matching.
func NewEmptyInputError(message string) *PathsightError {
	return Wrap(ErrCategoryIngest, CodeEmptyInput, message, types.ErrEmptyInput)
}

func NewStorageError(code, message string, cause error) *PathsightError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCatalogError(code, message string, cause error) *PathsightError {
	return Wrap(ErrCategoryCatalog, code, message, cause)
}

func NewInternalError(message string, cause error) *PathsightError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
