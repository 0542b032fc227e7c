package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "test error")
	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("expected message 'test error', got %s", err.Message)
	}
	if err.Err != nil {
		t.Errorf("expected nil wrapped error, got %v", err.Err)
	}
}

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			err:      New(CodeValidation, "validation failed"),
			expected: "[VALIDATION_ERROR] validation failed",
		},
		{
			name:     "error with wrapped error",
			err:      Wrap(errors.New("inner"), CodeConfigDecode, "bad token"),
			expected: "[CONFIG_DECODE_ERROR] bad token: inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	originalErr := errors.New("original")
	err := Wrap(originalErr, CodeParse, "wrapped")

	if unwrapped := err.Unwrap(); unwrapped != originalErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, originalErr)
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(CodeValidation, "test").
		WithContext("field", "listOrder").
		WithContext("value", "invalid")

	if len(err.Context) != 2 {
		t.Errorf("expected 2 context items, got %d", len(err.Context))
	}
	if err.Context["field"] != "listOrder" {
		t.Errorf("expected field context 'listOrder', got %v", err.Context["field"])
	}
}

func TestExternalServiceError(t *testing.T) {
	t.Run("plain error", func(t *testing.T) {
		err := ExternalServiceError("addon", "fetch failed", errors.New("boom"))
		if err.Code != CodeExternalService {
			t.Errorf("expected code %s, got %s", CodeExternalService, err.Code)
		}
		if err.Context["service"] != "addon" {
			t.Errorf("expected service context 'addon', got %v", err.Context["service"])
		}
	})

	t.Run("keeps categorized code", func(t *testing.T) {
		inner := New(CodeRateLimited, "slow down")
		err := ExternalServiceError("addon", "fetch failed", inner)
		if err.Code != CodeRateLimited {
			t.Errorf("expected code %s, got %s", CodeRateLimited, err.Code)
		}
		if !IsRetryable(err) {
			t.Error("expected wrapped rate limit to stay retryable")
		}
	})
}

func TestFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorCode
	}{
		{http.StatusUnauthorized, CodeUnauthorized},
		{http.StatusForbidden, CodeUnauthorized},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusTooManyRequests, CodeRateLimited},
		{http.StatusGatewayTimeout, CodeServiceTimeout},
		{http.StatusBadGateway, CodeServiceUnavailable},
		{http.StatusTeapot, CodeExternalService},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := FromHTTPStatus("listhost", tt.status, "body")
			if err.Code != tt.expected {
				t.Errorf("expected code %s, got %s", tt.expected, err.Code)
			}
			if err.Context["status"] != tt.status {
				t.Errorf("expected status context %d, got %v", tt.status, err.Context["status"])
			}
		})
	}
}

func TestFromTransport(t *testing.T) {
	if err := FromTransport("addon", nil); err != nil {
		t.Fatalf("expected nil for nil error, got %v", err)
	}

	err := FromTransport("addon", fmt.Errorf("get: %w", context.DeadlineExceeded))
	if err.Code != CodeServiceTimeout {
		t.Errorf("expected timeout code, got %s", err.Code)
	}

	err = FromTransport("addon", errors.New("connection refused"))
	if err.Code != CodeServiceUnavailable {
		t.Errorf("expected unavailable code, got %s", err.Code)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable service timeout",
			err:      Wrap(errors.New("timeout"), CodeServiceTimeout, "timeout"),
			expected: true,
		},
		{
			name:     "retryable service unavailable",
			err:      Wrap(errors.New("unavailable"), CodeServiceUnavailable, "unavailable"),
			expected: true,
		},
		{
			name:     "retryable rate limited",
			err:      Wrap(errors.New("rate limit"), CodeRateLimited, "rate limited"),
			expected: true,
		},
		{
			name:     "non-retryable unauthorized",
			err:      UnauthorizedError("tracker"),
			expected: false,
		},
		{
			name:     "non-retryable not found",
			err:      NotFoundError("list", "42"),
			expected: false,
		},
		{
			name:     "non-app error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsEmptyResult(t *testing.T) {
	if !IsEmptyResult(UnauthorizedError("listhost")) {
		t.Error("expected auth error to degrade to empty result")
	}
	if !IsEmptyResult(ResolutionMiss("lh-1-L")) {
		t.Error("expected resolution miss to degrade to empty result")
	}
	if IsEmptyResult(New(CodeRateLimited, "slow")) {
		t.Error("expected rate limit not to be an empty result")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{
			name:     "app error",
			err:      ValidationError("test"),
			expected: CodeValidation,
		},
		{
			name:     "wrapped app error",
			err:      fmt.Errorf("outer: %w", ConfigDecodeError("test", errors.New("inner"))),
			expected: CodeConfigDecode,
		},
		{
			name:     "standard error",
			err:      errors.New("standard"),
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}
