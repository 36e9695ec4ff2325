package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-redis/redis/v8"
)

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrNotFound, true},
		{"wrapped sentinel", fmt.Errorf("get warning: %w", ErrNotFound), true},
		{"redis nil", redis.Nil, true},
		{"no rows", sql.ErrNoRows, true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTypedErrors(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("award xp: %w", &StorageError{Op: "get", Err: cause})
	if !IsStorage(err) {
		t.Fatalf("expected storage error")
	}
	if !errors.Is(err, cause) {
		t.Errorf("storage error should unwrap to its cause")
	}
	if IsCorrupt(err) {
		t.Errorf("storage error must not be reported as corrupt")
	}

	corrupt := &CorruptDataError{Kind: "chat", Key: "42", Err: errors.New("unexpected end of JSON input")}
	if !IsCorrupt(corrupt) {
		t.Errorf("expected corrupt error")
	}
	if IsNotFound(corrupt) {
		t.Errorf("corrupt data must never look like a missing record")
	}

	ve, ok := IsValidation(fmt.Errorf("toggle: %w", Invalid("feature", "must not be empty")))
	if !ok {
		t.Fatalf("expected validation error")
	}
	if ve.Field != "feature" {
		t.Errorf("Field = %q, want feature", ve.Field)
	}
}
