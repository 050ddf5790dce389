package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationPlan         ErrorCode = "validation_invalid_plan"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationDateRange    ErrorCode = "validation_invalid_date_range"
	ErrCodeValidationRequest      ErrorCode = "validation_invalid_request"

	// Catalog rules
	ErrCodeCatalogFull         ErrorCode = "catalog_full"           // 409
	ErrCodeCannotDeleteBuiltin ErrorCode = "cannot_delete_builtin"  // 403

	// Not Found (404)
	ErrCodeNotFoundPlan   ErrorCode = "not_found_plan"
	ErrCodeNotFoundSeller ErrorCode = "not_found_seller"

	// Conflict (409)
	ErrCodeConflictConcurrent ErrorCode = "conflict_concurrent_modification"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamStripe      ErrorCode = "upstream_stripe_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case c == ErrCodeCatalogFull:
		return http.StatusConflict // 409
	case c == ErrCodeCannotDeleteBuiltin:
		return http.StatusForbidden // 403
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict // 409
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the engine.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// FieldErrors collects per-field validation messages for form-style errors.
// Rules append to it as they run; the caller converts the accumulated set
// into a single AppError so that every offending field is reported at once
// rather than failing on the first.
type FieldErrors map[string]string

// Add records a message for the given field. The first message per field wins.
func (f FieldErrors) Add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

// HasErrors reports whether any field message was recorded.
func (f FieldErrors) HasErrors() bool {
	return len(f) > 0
}

// AsError converts the collected messages into a validation AppError, or
// returns nil when no messages were recorded.
func (f FieldErrors) AsError() error {
	if !f.HasErrors() {
		return nil
	}
	fields := make(map[string]any, len(f))
	for k, v := range f {
		fields[k] = v
	}
	return NewAppErrorWithDetails(
		ErrCodeValidationPlan,
		"plan definition failed validation",
		nil,
		map[string]any{"fields": fields},
	)
}

// NewValidationError builds a field-level validation AppError directly from
// field->message pairs. Used by request decoding where rules are not
// accumulated incrementally.
func NewValidationError(code ErrorCode, fields map[string]string) *AppError {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return NewAppErrorWithDetails(code, "request failed validation", nil, map[string]any{"fields": details})
}
