package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorCode represents a categorized error code
type ErrorCode string

const (
	// Validation errors
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Configuration token errors
	CodeConfigDecode ErrorCode = "CONFIG_DECODE_ERROR"
	CodeConfigEncode ErrorCode = "CONFIG_ENCODE_ERROR"

	// Catalog resolution errors
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeResolutionMiss    ErrorCode = "RESOLUTION_MISS"
	CodeNormalizationSkip ErrorCode = "NORMALIZATION_SKIP"

	// Parse errors
	CodeParse         ErrorCode = "PARSE_ERROR"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeMalformedData ErrorCode = "MALFORMED_DATA"

	// External service errors
	CodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"

	// Config errors
	CodeConfig        ErrorCode = "CONFIG_ERROR"
	CodeMissingConfig ErrorCode = "MISSING_CONFIG"
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Internal errors
	CodeInternal ErrorCode = "INTERNAL_ERROR"
	CodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError creates a validation error
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// ConfigDecodeError creates an error for an unreadable configuration token
func ConfigDecodeError(message string, err error) *AppError {
	return Wrap(err, CodeConfigDecode, message)
}

// ParseError creates a parse error
func ParseError(message string, err error) *AppError {
	return Wrap(err, CodeParse, message)
}

// ResolutionMiss creates an error for a catalog id no adapter can serve
func ResolutionMiss(catalogID string) *AppError {
	return New(CodeResolutionMiss, fmt.Sprintf("no provider resolves catalog %s", catalogID)).
		WithContext("catalog_id", catalogID)
}

// NormalizationSkip creates an error for a provider item without a usable identifier
func NormalizationSkip(message string) *AppError {
	return New(CodeNormalizationSkip, message)
}

// ExternalServiceError creates an external service error
func ExternalServiceError(service, message string, err error) *AppError {
	code := CodeExternalService
	var appErr *AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	return Wrap(err, code, message).
		WithContext("service", service)
}

// ConfigError creates a configuration error
func ConfigError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, CodeConfig, message)
	}
	return New(CodeConfig, message)
}

// FromHTTPStatus maps a non-2xx upstream status to a categorized error
func FromHTTPStatus(service string, status int, body string) *AppError {
	if len(body) > 200 {
		body = body[:200]
	}
	msg := fmt.Sprintf("%s returned status %d", service, status)
	if body != "" {
		msg = fmt.Sprintf("%s: %s", msg, body)
	}

	var code ErrorCode
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = CodeUnauthorized
	case status == http.StatusNotFound || status == http.StatusGone:
		code = CodeNotFound
	case status == http.StatusTooManyRequests:
		code = CodeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		code = CodeServiceTimeout
	case status >= 500:
		code = CodeServiceUnavailable
	default:
		code = CodeExternalService
	}

	return New(code, msg).
		WithContext("service", service).
		WithContext("status", status)
}

// FromTransport classifies an error returned by the HTTP transport itself
func FromTransport(service string, err error) *AppError {
	if err == nil {
		return nil
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		strings.Contains(strings.ToLower(err.Error()), "timeout"):
		return Wrap(err, CodeServiceTimeout, service+" request timed out").WithContext("service", service)
	case errors.Is(err, context.Canceled):
		return Wrap(err, CodeExternalService, service+" request canceled").WithContext("service", service)
	default:
		return Wrap(err, CodeServiceUnavailable, service+" unreachable").WithContext("service", service)
	}
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case CodeServiceTimeout, CodeServiceUnavailable, CodeRateLimited:
			return true
		}
	}
	return false
}

// IsEmptyResult reports whether the error should degrade to an explicit empty catalog
// page instead of being retried or surfaced
func IsEmptyResult(err error) bool {
	switch GetErrorCode(err) {
	case CodeUnauthorized, CodeNotFound, CodeResolutionMiss, CodeMissingConfig:
		return true
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeValidation || appErr.Code == CodeInvalidInput
	}
	return false
}

// NotFoundError creates a not found error
func NotFoundError(resource, identifier string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, identifier))
}

// UnauthorizedError creates an error for missing or rejected provider credentials
func UnauthorizedError(service string) *AppError {
	return New(CodeUnauthorized, service+" credentials missing or rejected").
		WithContext("service", service)
}
