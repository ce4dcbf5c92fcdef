package client

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{http.StatusNotFound, ErrorClassNotFound},
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusBadRequest, ErrorClassClient},
		{http.StatusForbidden, ErrorClassClient},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusOK, ""},
		{http.StatusNotModified, ""},
	}

	for _, tt := range tests {
		result := ClassifyStatus(tt.status)
		if result != tt.expected {
			t.Errorf("ClassifyStatus(%d) = %q, want %q", tt.status, result, tt.expected)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "not found should not retry",
			errorClass: ErrorClassNotFound,
			expected:   false,
		},
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "internal server error",
				Err:        errors.New("connection refused"),
			},
			expected: "pageviews server error (status 500): internal server error: connection refused",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 404,
				ErrorClass: ErrorClassNotFound,
				Message:    "not found",
				Err:        nil,
			},
			expected: "pageviews not_found error (status 404): not found",
		},
		{
			name: "rate limit error",
			apiError: &APIError{
				StatusCode: 429,
				ErrorClass: ErrorClassRateLimit,
				Message:    "too many requests",
				Err:        nil,
			},
			expected: "pageviews rate_limit error (status 429): too many requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.apiError.Error()
			if result != tt.expected {
				t.Errorf("Error() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	wrappedErr := errors.New("wrapped error")
	apiError := &APIError{
		StatusCode: 500,
		ErrorClass: ErrorClassServer,
		Message:    "server error",
		Err:        wrappedErr,
	}

	unwrapped := apiError.Unwrap()
	if unwrapped != wrappedErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, wrappedErr)
	}

	// Test errors.Is
	if !errors.Is(apiError, wrappedErr) {
		t.Error("errors.Is should work with wrapped error")
	}
}

func TestClassifyRetryError(t *testing.T) {
	apiErr := &APIError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "unavailable"}
	if got := classifyRetryError(apiErr); got != ErrorClassServer {
		t.Errorf("classifyRetryError(APIError) = %q, want server", got)
	}

	plainErr := errors.New("dial tcp: connection refused")
	if got := classifyRetryError(plainErr); got != ErrorClassNetwork {
		t.Errorf("classifyRetryError(plain error) = %q, want network", got)
	}
}
