package silo

import "fmt"

// LockedStorageError is returned by structural operations attempted while
// the world is locked via World.Lock.
type LockedStorageError struct{}

func (e LockedStorageError) Error() string {
	return "silo: storage is currently locked"
}

// NotAliveError is returned when an operation targets an entity id whose
// generation no longer matches the entity store (already despawned, or
// never spawned).
type NotAliveError struct {
	ID Entity
}

func (e NotAliveError) Error() string {
	return fmt.Sprintf("silo: entity %v is not alive", e.ID)
}

// MissingComponentError is returned when an operation needs a component
// that is not present on the entity's archetype.
type MissingComponentError struct {
	ID        Entity
	Component ComponentKey
}

func (e MissingComponentError) Error() string {
	return fmt.Sprintf("silo: entity %v has no component %v", e.ID, e.Component)
}

// DoesNotMatchError is returned by Query.Get when the entity is alive but
// its archetype fails the query's static filter.
type DoesNotMatchError struct {
	ID Entity
}

func (e DoesNotMatchError) Error() string {
	return fmt.Sprintf("silo: entity %v does not match the query", e.ID)
}

// FilteredError is returned by Query.Get when the entity's archetype
// matches but the per-slot filter (e.g. Modified) rejects this entity.
type FilteredError struct {
	ID Entity
}

func (e FilteredError) Error() string {
	return fmt.Sprintf("silo: entity %v was filtered out", e.ID)
}

// EntityRelationError reports an attempt to give an entity a second parent.
type EntityRelationError struct {
	Child, Parent Entity
}

func (e EntityRelationError) Error() string {
	return fmt.Sprintf("silo: entity %v already has a parent, cannot set %v", e.Child, e.Parent)
}

// ComponentExistsError reports a duplicate component registration attempt.
type ComponentExistsError struct {
	Key ComponentKey
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("silo: component %v already registered", e.Key)
}

// UserSystemError wraps an error returned by a System's callable, tagging
// the system name that produced it so a Schedule can report which system
// aborted the batch.
type UserSystemError struct {
	System string
	Err    error
}

func (e UserSystemError) Error() string {
	return fmt.Sprintf("silo: system %q failed: %v", e.System, e.Err)
}

func (e UserSystemError) Unwrap() error {
	return e.Err
}

// BorrowConflictError indicates two incompatible concurrent cell borrows.
// This is an internal bug indicator: a caller violated the single-writer
// XOR many-readers contract. Panics unless Config.panicOnBorrow is false.
type BorrowConflictError struct {
	Component ComponentKey
}

func (e BorrowConflictError) Error() string {
	return fmt.Sprintf("silo: borrow conflict on component %v", e.Component)
}

// TypeMismatchError indicates an internal bug: a typed accessor was used
// against a column of a different type.
type TypeMismatchError struct {
	Expected, Got string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("silo: type mismatch, expected %s got %s", e.Expected, e.Got)
}
