// Package apperrors defines the error taxonomy shared by the stores and services.
package apperrors

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned by explicit lookups (warning by id, global setting).
// Settings and rank reads never return it; they initialize defaults instead.
var ErrNotFound = errors.New("record not found")

// StorageError reports a failed storage operation. The triggering event is aborted.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CorruptDataError reports a stored document that exists but cannot be decoded.
type CorruptDataError struct {
	Kind string
	Key  string
	Err  error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt %s document %q: %v", e.Kind, e.Key, e.Err)
}

func (e *CorruptDataError) Unwrap() error { return e.Err }

// ValidationError reports caller-supplied input that failed a shape check.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, redis.Nil) ||
		errors.Is(err, sql.ErrNoRows)
}

// IsStorage reports whether err is a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsCorrupt reports whether err is a CorruptDataError.
func IsCorrupt(err error) bool {
	var ce *CorruptDataError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
