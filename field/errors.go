package field

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a field doesn't exist or belongs to another product.
	ErrNotFound = errors.New("field: not found")

	// ErrValidation is returned for malformed create, update or task value input.
	ErrValidation = errors.New("field: invalid input")

	// ErrTransaction is returned when the store transaction could not commit.
	// No part of the requested change is persisted.
	ErrTransaction = errors.New("field: transaction failed")

	// ErrConflict is returned by stores when another writer modified the field
	// between load and commit.
	ErrConflict = errors.New("field: concurrent modification")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("field: %s %q not found", e.Entity, e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError describes the offending input key.
type ValidationError struct {
	Key    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field: invalid %s: %s", e.Key, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// TransactionError wraps the store error that aborted a transaction.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("field: %s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransaction.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict reports whether err was caused by a concurrent modification.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func notFound(id string) error {
	return &NotFoundError{Entity: "field", ID: id}
}

func invalid(key, reason string) error {
	return &ValidationError{Key: key, Reason: reason}
}

// txError passes domain errors through and wraps everything else.
func txError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return err
	}
	return &TransactionError{Op: op, Err: err}
}
