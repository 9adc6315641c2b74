package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		errorType  ErrorType
		statusCode int
	}{
		{"validation", NewValidationError("bad", nil), ErrorTypeValidation, http.StatusBadRequest},
		{"decode", NewDecodeError("bad image", nil), ErrorTypeDecode, http.StatusUnprocessableEntity},
		{"network", NewNetworkError("down", nil), ErrorTypeNetwork, http.StatusBadGateway},
		{"empty response", NewEmptyResponseError("empty", nil), ErrorTypeEmptyResponse, http.StatusBadGateway},
		{"parse", NewParseError("garbled", nil), ErrorTypeParse, http.StatusUnprocessableEntity},
		{"timeout", NewTimeoutError("slow", nil), ErrorTypeTimeout, http.StatusGatewayTimeout},
		{"unauthorized", NewUnauthorizedError("no key", nil), ErrorTypeUnauthorized, http.StatusUnauthorized},
		{"conflict", NewConflictError("busy", nil), ErrorTypeConflict, http.StatusConflict},
		{"not found", NewNotFoundError("gone", nil), ErrorTypeNotFound, http.StatusNotFound},
		{"internal", NewInternalError("boom", nil), ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Type != tt.errorType {
				t.Errorf("Expected type %s, got %s", tt.errorType, tt.err.Type)
			}
			if GetStatusCode(tt.err) != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, GetStatusCode(tt.err))
			}
			if !IsType(tt.err, tt.errorType) {
				t.Errorf("Expected IsType to match %s", tt.errorType)
			}
		})
	}
}

func TestAppError_WrappedLookup(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := NewNetworkError("vision API unreachable", cause)
	wrapped := fmt.Errorf("analyze: %w", appErr)

	if !IsType(wrapped, ErrorTypeNetwork) {
		t.Error("Expected wrapped error to be recognized as network error")
	}
	if GetStatusCode(wrapped) != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", GetStatusCode(wrapped))
	}
	if !errors.Is(wrapped, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
}

func TestReason(t *testing.T) {
	if Reason(nil) != "" {
		t.Error("Expected empty reason for nil error")
	}
	appErr := NewNetworkError("quota exceeded", errors.New("status 429"))
	if Reason(appErr) != "quota exceeded" {
		t.Errorf("Expected 'quota exceeded', got %q", Reason(appErr))
	}
	if Reason(errors.New("plain")) != "plain" {
		t.Error("Expected plain error text as reason")
	}
	if GetStatusCode(errors.New("plain")) != http.StatusInternalServerError {
		t.Error("Expected 500 for non-AppError")
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewDecodeError("unsupported image", errors.New("unknown format"))
	expected := "decode: unsupported image (caused by: unknown format)"
	if err.Error() != expected {
		t.Errorf("Expected %q, got %q", expected, err.Error())
	}
	if NewConflictError("busy", nil).Error() != "conflict: busy" {
		t.Errorf("Unexpected message: %s", NewConflictError("busy", nil).Error())
	}
}
