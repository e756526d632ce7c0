package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "import in progress",
			err:         ErrImportInProgress,
			wantCode:    "IMP001",
			wantMessage: "Another import is already running",
		},
		{
			name:        "wrapped preview not found",
			err:         fmt.Errorf("execute abc: %w", ErrPreviewNotFound),
			wantCode:    "IMP002",
			wantMessage: "Import preview not found",
		},
		{
			name:        "actor required wins over generic required",
			err:         ErrActorRequired,
			wantCode:    "IMP003",
			wantMessage: "The request did not say who is importing",
		},
		{
			name:        "actor mismatch",
			err:         ErrActorMismatch,
			wantCode:    "IMP004",
			wantMessage: "This preview was created by another operator",
		},
		{
			name:        "import blocked",
			err:         ErrImportBlocked,
			wantCode:    "VAL001",
			wantMessage: "The workbook has rows with errors",
		},
		{
			name:        "unreadable workbook",
			err:         fmt.Errorf("%w: zip: not a valid zip file", ErrUnreadableWorkbook),
			wantCode:    "FILE002",
			wantMessage: "File is not a valid xlsx workbook",
		},
		{
			name:        "file too large",
			err:         ErrFileTooLarge,
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "duplicate key from executor",
			err:         errors.New("Customers row 4: insert customer: ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "foreign key",
			err:         errors.New("violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "timeout",
			err:         errors.New("context deadline exceeded (timeout)"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "plain deadline",
			err:         context.DeadlineExceeded,
			wantCode:    "IMP006",
			wantMessage: "Request timed out",
		},
		{
			name:        "rate limit",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrImportBlocked)

	expected := "The workbook has rows with errors (Code: VAL001). Fix the rows listed in the preview and upload again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrEmptyFile, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("execute: %w", ErrImportInProgress)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Another import is already running" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrImportInProgress) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
