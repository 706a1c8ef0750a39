package field

import "context"

// Store is the transactional repository behind a Service.
//
// Read methods always return full subtrees: every Value with its Properties,
// ordered by Position.
type Store interface {
	// RunInTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise; a failed commit leaves nothing
	// written.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// FindField returns the field with its subtree, or an error matching
	// ErrNotFound when it doesn't exist under productID.
	FindField(ctx context.Context, productID, id string) (*Field, error)

	// ListFields returns every field of the product with its subtree.
	ListFields(ctx context.Context, productID string) ([]Field, error)

	// ListTaskValues returns the task values bound to any of the tasks.
	ListTaskValues(ctx context.Context, taskIDs ...string) ([]TaskValue, error)
}

// Tx is the write side of a Store transaction.
//
// Create methods assign fresh ids in place: on the value or field passed by
// pointer and on every element of the property and task value slices.
// Destroy methods are no-ops for empty input and for rows that no longer exist.
type Tx interface {
	// LockField loads the field subtree and holds it against concurrent
	// writers until the transaction ends. Returns ErrNotFound when missing.
	LockField(ctx context.Context, productID, id string) (*Field, error)

	CreateField(ctx context.Context, f *Field) error
	UpdateField(ctx context.Context, f *Field) error
	// DestroyField removes the field and cascades to its values, their
	// properties and the task values bound to it.
	DestroyField(ctx context.Context, f *Field) error

	CreateValue(ctx context.Context, v *Value) error
	UpdateValue(ctx context.Context, v *Value) error
	// DestroyValues removes the values and cascades to their properties.
	DestroyValues(ctx context.Context, values []Value) error

	CreateProperties(ctx context.Context, props []Property) error
	DestroyProperties(ctx context.Context, props []Property) error

	// LockTaskValues loads the task's bindings for a replace.
	LockTaskValues(ctx context.Context, taskID string) ([]TaskValue, error)
	CreateTaskValues(ctx context.Context, productID string, values []TaskValue) error
	DestroyTaskValues(ctx context.Context, values []TaskValue) error
}
