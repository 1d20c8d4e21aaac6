package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is should see through AppError")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestFromGRPCStatus(t *testing.T) {
	tests := []struct {
		code       codes.Code
		wantCode   ErrorCode
		wantStatus int
	}{
		{codes.NotFound, ErrCodeNotFound, http.StatusNotFound},
		{codes.InvalidArgument, ErrCodeInvalidInput, http.StatusBadRequest},
		{codes.AlreadyExists, ErrCodeConflict, http.StatusConflict},
		{codes.Unavailable, ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
		{codes.Internal, ErrCodeInternal, http.StatusInternalServerError},
		{codes.Unknown, ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			appErr := FromGRPCStatus(status.Error(tt.code, "boom"))
			if appErr.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", appErr.Code, tt.wantCode)
			}
			if appErr.HTTPStatus != tt.wantStatus {
				t.Errorf("HTTPStatus = %v, want %v", appErr.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestFromGRPCStatus_KeepsSanitizedMessage(t *testing.T) {
	appErr := FromGRPCStatus(status.Error(codes.AlreadyExists, "email already registered"))
	if appErr.Message != "email already registered" {
		t.Errorf("Message = %v", appErr.Message)
	}
}

func TestFromGRPCStatus_PlainError(t *testing.T) {
	appErr := FromGRPCStatus(errors.New("dial tcp: connection refused"))
	if appErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %v, want 500", appErr.HTTPStatus)
	}
	if strings.Contains(appErr.Message, "dial") {
		t.Errorf("Message leaks cause: %v", appErr.Message)
	}
	if FromGRPCStatus(nil) != nil {
		t.Error("FromGRPCStatus(nil) should be nil")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)

	if result := GetAppError(appErr); result != appErr {
		t.Errorf("GetAppError() = %v, want %v", result, appErr)
	}

	wrapped := fmt.Errorf("handler: %w", appErr)
	if result := GetAppError(wrapped); result != appErr {
		t.Error("GetAppError() should extract AppError from wrapped error")
	}

	if result := GetAppError(errors.New("regular error")); result != nil {
		t.Error("GetAppError() should return nil for regular error")
	}
}
