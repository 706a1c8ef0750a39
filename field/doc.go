// Package field manages custom task field definitions scoped to a product.
//
// A [Field] owns an ordered list of selectable [Value]s, and every Value owns
// a list of name/value [Property] pairs. Tasks bind scalar values to fields
// through [TaskValue] records.
//
// # Reconciliation
//
// Updates submit the desired Value tree for a field. [Reconcile] compares it
// with the persisted tree and produces a [Plan]:
//
//   - desired values without an id are created, with fresh property ids
//   - current values missing from the desired set are destroyed, together
//     with their properties
//   - values present in both keep their id, take the new title and have
//     their properties replaced wholesale
//
// Desired ids that are unknown to the field are ignored. The plan is applied
// inside one store transaction, so either the whole tree changes or nothing
// does.
//
// # Storage
//
// The [Store] and [Tx] interfaces describe the transactional repository the
// [Service] needs. The store package implements them on DynamoDB and the
// sqlstore package on SQLite, PostgreSQL and MySQL.
//
// # Errors
//
//   - [ErrNotFound] - field missing or owned by another product
//   - [ErrValidation] - malformed create, update or task value input
//   - [ErrTransaction] - the store could not commit; nothing was written
//   - [ErrConflict] - another writer changed the field first (also an
//     [ErrTransaction])
package field
