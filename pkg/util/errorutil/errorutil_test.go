package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToDomainError(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"validation", NewValidationError("bad", nil), CodeValidation, http.StatusBadRequest},
		{"not found", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"state", NewStateError("no chat", nil), CodeInvalidState, http.StatusConflict},
		{"storage", NewStorageError(cause), CodeStorage, http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("create: %w", NewValidationError("bad", nil)), CodeValidation, http.StatusBadRequest},
		{"no rows", sql.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"unknown", cause, CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.Code != tc.code {
				t.Fatalf("code = %q, want %q", got.Code, tc.code)
			}
			if got.HTTPStatus != tc.status {
				t.Fatalf("status = %d, want %d", got.HTTPStatus, tc.status)
			}
		})
	}
}

func TestStorageErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStorageError(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected storage error to wrap cause")
	}
}

func TestCodeOfNil(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Fatalf("CodeOf(nil) = %q", got)
	}
	if MapError(nil) != nil {
		t.Fatalf("MapError(nil) should be nil")
	}
}
