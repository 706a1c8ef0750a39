// Package store implements the field schema store on DynamoDB.
//
// Each level of the hierarchy lives in its own table, keyed by the id of its
// parent so that a consistent Query returns the children of one parent:
//
//	task_fields                    product_id (hash), id (range)
//	task_fields_values             field_id (hash), id (range)
//	task_fields_values_properties  value_id (hash), id (range)
//	custom_task_fields             task_id (hash), id (range), GSI field_id-index
//
// # Transactions
//
// [Store.RunInTx] buffers every write of a field.Tx and commits them with one
// TransactWriteItems call, so a field update lands completely or not at all.
// Fields carry a version attribute. LockField records it, and the field
// update or delete is conditioned on it, so a concurrent writer makes the
// commit fail with [ErrConcurrentModification]. DynamoDB caps a transaction
// at 100 actions; larger changes fail with [ErrTransactionTooLarge].
//
// # Deletes
//
// Deletes are soft: they set the ttl attribute, and DynamoDB TTL removes the
// item later. Reads treat items whose ttl is in the past as missing. When a
// field or value is deleted only that item is written. The stream handler in
// package stream then walks the [Registry] and expires the children, so
// deleting a field with many values and task bindings never hits the
// transaction limit.
//
// # Errors
//
//   - [ErrNotFound] - entity doesn't exist or is deleted
//   - [ErrParentNotFound] - a task value references a missing field
//   - [ErrAlreadyExists] - an item with the generated id already exists
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrTransactionTooLarge] - more than MaxTransactItems actions
package store
