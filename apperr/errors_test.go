package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind Kind
	}{
		{Validation("bad input"), KindValidation},
		{NotFound("no such task"), KindNotFound},
		{Conflict("already exists", nil), KindConflict},
		{Upstream("catalog down", errors.New("dial tcp")), KindUpstream},
		{errors.New("plain"), KindUnknown},
		{nil, KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.kind {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.kind)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("record solve: %w", Validation("note too short"))
	if !IsValidation(err) {
		t.Error("IsValidation lost through wrapping")
	}

	cause := errors.New("duplicate key")
	err = Conflict("assignment exists", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap does not reach the cause")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("revision task %s not found", "abc")
	want := "NOT_FOUND: revision task abc not found"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
