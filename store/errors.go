package store

import (
	"errors"
	"fmt"

	"github.com/jacentio/taskfields/field"
)

var (
	// ErrNotFound is returned when an entity doesn't exist or is deleted (has TTL <= now).
	ErrNotFound = fmt.Errorf("taskfields: entity not found: %w", field.ErrNotFound)

	// ErrParentNotFound is returned when a task value references a field that
	// doesn't exist or is deleted.
	ErrParentNotFound = &field.ValidationError{Key: "taskFieldId", Reason: "field does not exist"}

	// ErrAlreadyExists is returned when attempting to create an entity with an existing ID.
	ErrAlreadyExists = fmt.Errorf("taskfields: entity already exists: %w", field.ErrConflict)

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = fmt.Errorf("taskfields: entity was modified concurrently: %w", field.ErrConflict)

	// ErrTransactionTooLarge is returned when a transaction buffers more
	// actions than Config.MaxTransactItems. It is a validation error on the
	// values key: the caller has to send fewer values or properties.
	ErrTransactionTooLarge = &field.ValidationError{
		Key:    "values",
		Reason: "too many values and properties for one change",
	}

	// ErrNotLocked is returned when a field is written without being loaded
	// through LockField in the same transaction.
	ErrNotLocked = errors.New("taskfields: field was not locked in this transaction")
)
