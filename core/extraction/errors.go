package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not_found")
	// ErrConflict matches every ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation_failed")
	// ErrParse matches every ParseError.
	ErrParse = errors.New("parse_failed")
	// ErrNoClientConfig means neither a client registry nor a legacy clients document exists.
	ErrNoClientConfig = errors.New("no client configuration found")
	// ErrInvalidClientID means a client id does not match ^[a-z0-9-]+$.
	ErrInvalidClientID = errors.New("invalid client id format")
)

// ValidationError reports a malformed record or override payload. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports an unknown client id or override section.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports an attempt to create an entity that already exists.
type ConflictError struct {
	Kind string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.ID)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ParseError reports an unparseable model response. It is fatal for the
// document; retrying is the caller's decision.
type ParseError struct {
	Reason  string
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	msg := "parse model response: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Snippet != "" {
		msg += fmt.Sprintf(" (near %q)", e.Snippet)
	}
	return msg
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

func (e *ParseError) Unwrap() error { return e.Err }
