package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			appErr:   ErrNoFaceDetected,
			expected: "No face detected in the image",
		},
		{
			name: "error with wrapped error",
			appErr: &AppError{
				Code:       "TEST_ERROR",
				Message:    "Test message",
				StatusCode: 500,
				Err:        errors.New("underlying error"),
			},
			expected: "Test message: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	appErr := &AppError{
		Code:       "TEST",
		Message:    "test",
		StatusCode: 500,
		Err:        underlying,
	}

	if got := appErr.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	if got := ErrInvalidImage.Unwrap(); got != nil {
		t.Errorf("Unwrap() = %v, want nil", got)
	}
}

func TestAppError_WithError(t *testing.T) {
	underlying := errors.New("connection refused")
	newErr := ErrProviderUnavailable.WithError(underlying)

	if newErr.Code != ErrProviderUnavailable.Code {
		t.Errorf("Code = %v, want %v", newErr.Code, ErrProviderUnavailable.Code)
	}

	if newErr.StatusCode != ErrProviderUnavailable.StatusCode {
		t.Errorf("StatusCode = %v, want %v", newErr.StatusCode, ErrProviderUnavailable.StatusCode)
	}

	if !errors.Is(newErr, underlying) {
		t.Errorf("errors.Is should return true for wrapped error")
	}
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("register: %w", ErrInvalidImage.WithError(errors.New("bad base64")))

	if !errors.Is(wrapped, ErrInvalidImage) {
		t.Errorf("errors.Is should match a WithError copy by code")
	}
	if errors.Is(wrapped, ErrProviderUnavailable) {
		t.Errorf("errors.Is should not match a different code")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatalf("errors.As should find the AppError")
	}
	if appErr.StatusCode != 400 {
		t.Errorf("StatusCode = %d, want 400", appErr.StatusCode)
	}
}
