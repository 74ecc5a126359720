package repo

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a directly looked-up record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique name or isbn is already taken
	ErrDuplicate = errors.New("already exists")
)

// NotFoundError identifies the missing record
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func notFound(kind string, key any) error {
	return &NotFoundError{Kind: kind, Key: fmt.Sprint(key)}
}

// DuplicateError identifies the conflicting value
type DuplicateError struct {
	Kind string
	Key  string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists: %s", e.Kind, e.Key)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}
