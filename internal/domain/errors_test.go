package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantKind  ErrorKind
		sentinel  error
		retryable bool
	}{
		{"bad request", http.StatusBadRequest, KindBadRequest, ErrBadRequest, false},
		{"not found", http.StatusNotFound, KindBadRequest, ErrBadRequest, false},
		{"too many requests", http.StatusTooManyRequests, KindBadRequest, ErrBadRequest, false},
		{"internal", http.StatusInternalServerError, KindServerError, ErrServerError, true},
		{"gateway timeout", http.StatusGatewayTimeout, KindServerError, ErrServerError, true},
		{"no content", http.StatusNoContent, KindUnexpected, ErrUnexpected, false},
		{"redirect", http.StatusNotModified, KindUnexpected, ErrUnexpected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStatusError(tt.status, nil)
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.wantKind)
			}
			if err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.status)
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if err.Kind.Retryable() != tt.retryable {
				t.Errorf("Retryable() = %v, want %v", err.Kind.Retryable(), tt.retryable)
			}
		})
	}
}

func TestClientError_WrappedMatching(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("search: %w", NewNetworkError(cause))

	if !errors.Is(err, ErrNetwork) {
		t.Error("wrapped network error should match ErrNetwork")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("network error should not match ErrTimeout")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindNetwork)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf(plain) should be empty")
	}
}

func TestClientError_Error(t *testing.T) {
	err := NewStatusError(http.StatusBadGateway, []byte("upstream down"))
	err.Attempts = 4
	want := "server_error (status 502): upstream down"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestNewStatusError_TruncatesBody(t *testing.T) {
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'x'
	}
	err := NewStatusError(http.StatusBadRequest, body)
	if len(err.Message) != 203 {
		t.Errorf("len(Message) = %d, want 203", len(err.Message))
	}
}
