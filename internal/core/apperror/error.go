// Package apperror provides structured error handling for the platform.
// All business errors must use AppError for consistent reporting.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by failure origin
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidInput = "INVALID_INPUT"

	// External collaborators (502)
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeSourceParse       = "SOURCE_PARSE_ERROR"
	CodeSourceNotFound    = "SOURCE_ITEM_NOT_FOUND"
	CodeMarketplace       = "MARKETPLACE_ERROR"

	// Batch processing (422)
	CodeBatchAborted           = "BATCH_ABORTED"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict = "CONFLICT"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for reporting.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (ids, URLs, counters)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewSourceUnavailable creates an error for an unreachable source site (502)
func NewSourceUnavailable(site string, url string, err error) *AppError {
	return &AppError{
		Code:       CodeSourceUnavailable,
		Message:    "Source site unavailable",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"site": site, "url": url},
		Err:        err,
	}
}

// NewSourceParse creates an error for an unparseable source page (502)
func NewSourceParse(site string, url string) *AppError {
	return &AppError{
		Code:       CodeSourceParse,
		Message:    "Source page could not be parsed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"site": site, "url": url},
	}
}

// NewMarketplace creates an error for a failed marketplace API call (502)
func NewMarketplace(marketplace string, err error) *AppError {
	return &AppError{
		Code:       CodeMarketplace,
		Message:    "Marketplace API call failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"marketplace": marketplace},
		Err:        err,
	}
}

// NewBatchAborted creates an error signalling the error threshold was crossed (422)
func NewBatchAborted(errorCount, maxErrors int) *AppError {
	return &AppError{
		Code:       CodeBatchAborted,
		Message:    "Batch aborted after reaching error threshold",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"errors": errorCount, "max_errors": maxErrors},
	}
}

// NewConcurrentModification creates an optimistic locking error (409)
func NewConcurrentModification(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeConcurrentModification,
		Message:    "Record was modified by another run. The item will be retried on the next pass.",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewTimeout creates a timeout error (504)
func NewTimeout(operation string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("%s timed out", operation),
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

// NewInternal creates an internal error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsConcurrentModification checks if error is CodeConcurrentModification
func IsConcurrentModification(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeConcurrentModification
	}
	return false
}
