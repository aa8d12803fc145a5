package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewErrorKnownCode(t *testing.T) {
	err := NewError(ErrUsernameTaken)

	if err.Code != ErrUsernameTaken {
		t.Errorf("Code = %d, want %d", err.Code, ErrUsernameTaken)
	}
	if err.Message != "name already taken" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Status != http.StatusOK {
		t.Errorf("Status = %d, want default %d", err.Status, http.StatusOK)
	}
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(424242)

	if err.Code != ErrUnknown {
		t.Errorf("Code = %d, want %d", err.Code, ErrUnknown)
	}
	if err.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d", err.Status)
	}
}

func TestNewErrorReturnsIndependentCopies(t *testing.T) {
	a := NewError(ErrUsernameRequired)
	a.Message = "changed"

	b := NewError(ErrUsernameRequired)
	if b.Message != "username required" {
		t.Errorf("template was mutated: %q", b.Message)
	}
}

func TestErrorsIsMatchesByCode(t *testing.T) {
	sentinel := NewError(ErrUsernameTaken)
	wrapped := fmt.Errorf("join failed: %w", NewError(ErrUsernameTaken))

	if !errors.Is(wrapped, sentinel) {
		t.Error("errors.Is should match CustomErrors with the same code")
	}
	if errors.Is(wrapped, NewError(ErrUsernameRequired)) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestMessageOf(t *testing.T) {
	if got := MessageOf(NewError(ErrAlreadyJoined)); got != "already joined" {
		t.Errorf("MessageOf(custom) = %q", got)
	}
	if got := MessageOf(errors.New("boom")); got != errorMap[ErrUnknown].Message {
		t.Errorf("MessageOf(plain) = %q", got)
	}
}
