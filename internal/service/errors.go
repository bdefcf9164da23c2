package service

import (
	"errors"
	"fmt"

	"github.com/fjod/mongomart/internal/repository"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// InputError rejects a request before anything is written.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StoreError carries a persistence failure unchanged and unwraps to the
// driver error. It matches ErrStoreUnavailable only when the store could not
// be reached; a failure about the data itself does not.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable && errors.Is(e.Err, repository.ErrUnavailable)
}

func invalid(field, reason string) error {
	return &InputError{Field: field, Reason: reason}
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
