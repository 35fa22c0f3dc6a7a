package silo

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// ComponentKey identifies a column within an archetype: a component id and,
// for relation instances, the relation's target entity. A non-null Target
// makes the key a relation instance, e.g. childOf(parent).
type ComponentKey struct {
	ID     Entity
	Target Entity
}

// IsRelation reports whether this key names a relation instance rather than
// a plain component.
func (k ComponentKey) IsRelation() bool { return !k.Target.IsNull() }

// Less orders keys lexicographically by (ID, Target); this is the
// archetype's canonical column order.
func (k ComponentKey) Less(other ComponentKey) bool {
	if k.ID != other.ID {
		return k.ID < other.ID
	}
	return k.Target < other.Target
}

func (k ComponentKey) String() string {
	if k.IsRelation() {
		return fmt.Sprintf("%v(%v)", k.ID, k.Target)
	}
	return k.ID.String()
}

// ComponentInfo is the static descriptor every registered component token
// carries: its key, layout, and a type-erased drop hook invoked when a
// value leaves a column without being moved to another archetype.
type ComponentInfo struct {
	Key   ComponentKey
	Size  uintptr
	Align uintptr
	Name  string
	Type  reflect.Type
	Drop  func(unsafe.Pointer)
	// Meta holds the keys of metadata components associated with this
	// component. FactoryNewComponent leaves it empty, and nothing in this
	// package attaches these components to entities.
	Meta []ComponentKey
}

// AnyComponent is the type-erased face of a component token. Component[T]
// implements it; code that only needs the key/layout (archetype
// bookkeeping, queries, the schedule's access lists) takes AnyComponent
// rather than a concrete Component[T].
type AnyComponent interface {
	Key() ComponentKey
	Info() ComponentInfo
}

// Component is a typed handle to a registered component, returned by
// FactoryNewComponent. It carries the static identity (ComponentKey) and
// layout (ComponentInfo) needed by the archetype graph; ArchetypeGraph.
// RowIndexFor assigns the stable per-(component, relation target) bit index
// from the key alone, the way the teacher's table.Schema.RowIndexFor assigns
// one from a table.ElementType.
type Component[T any] struct {
	key  ComponentKey
	info ComponentInfo
}

var _ AnyComponent = Component[int]{}

// Key returns the component's identity and, if this token was produced by
// Of, its relation target.
func (c Component[T]) Key() ComponentKey { return c.key }

// Info returns the component's static layout descriptor.
func (c Component[T]) Info() ComponentInfo { return c.info }

// Name returns the component's debug name, usually "package.Type".
func (c Component[T]) Name() string { return c.info.Name }

// Of instantiates this component as a relation targeting obj: the returned
// token's key has Target == obj, so it names a distinct archetype column
// per target, e.g. childOf.Of(parent).
func (c Component[T]) Of(obj Entity) Component[T] {
	c.key.Target = obj
	return c
}

var (
	registryMu       sync.Mutex
	registryByGoType = map[reflect.Type]Entity{}
	nextComponentIdx uint32 = 1
)

// internComponentID memoizes one Entity id per Go type, following the
// reflect.Type-keyed memoization lazyecs uses for its event bus handler
// registry (eventbus.go getEventTypeID): the first FactoryNewComponent[T]
// call mints an id, every later call for the same T returns it unchanged.
func internComponentID(rt reflect.Type, kind EntityKind) Entity {
	registryMu.Lock()
	defer registryMu.Unlock()
	if id, ok := registryByGoType[rt]; ok {
		return id
	}
	id := NewEntity(nextComponentIdx, 0, kind)
	nextComponentIdx++
	registryByGoType[rt] = id
	return id
}

// onDropper is implemented by component value types that need to observe
// their own removal from a column, e.g. tests verifying a drop hook fires
// exactly once via a shared refcount (spec.md §8 storage invariant).
type onDropper interface {
	OnDrop()
}

// makeDropHook builds the type-erased drop function stored on
// ComponentInfo: it invokes T.OnDrop if implemented, then zeroes the slot
// so no stale references are retained by the column's backing array.
func makeDropHook[T any]() func(unsafe.Pointer) {
	var zero T
	return func(p unsafe.Pointer) {
		v := (*T)(p)
		if d, ok := any(v).(onDropper); ok {
			d.OnDrop()
		}
		*v = zero
	}
}

// FactoryNewComponent creates a new Component[T] token. Repeated calls for
// the same T return a token with the same ComponentKey; the underlying id
// is allocated once at first use, matching the spec's memoised
// function-per-component registration pattern (spec.md §9).
func FactoryNewComponent[T any]() Component[T] {
	rt := reflect.TypeFor[T]()
	id := internComponentID(rt, EntityKindComponent)
	info := ComponentInfo{
		Key:   ComponentKey{ID: id},
		Size:  rt.Size(),
		Align: uintptr(rt.Align()),
		Name:  rt.String(),
		Type:  rt,
		Drop:  makeDropHook[T](),
	}
	return Component[T]{
		key:  info.Key,
		info: info,
	}
}
