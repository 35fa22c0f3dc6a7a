package silo

// Relation wraps a relation component's factory, giving the Of/With/Without
// sugar spec.md §6 asks for over plain ComponentKey{Target: obj} values.
// Supplements the core spec; grounded in flax's relation.rs
// (original_source/src/relation.rs), which wraps a component descriptor the
// same way rather than exposing raw target-keyed ComponentKeys directly.
type Relation[T any] struct {
	comp Component[T]
}

// FactoryNewRelation registers a new relation component, analogous to
// FactoryNewComponent but returning the Relation[T] wrapper.
func FactoryNewRelation[T any]() Relation[T] {
	return Relation[T]{comp: FactoryNewComponent[T]()}
}

// Component returns the underlying Component[T] token, for callers that need
// to pass it to Fetch constructors directly.
func (r Relation[T]) Component() Component[T] { return r.comp }

// Of returns a Component[T] token bound to a relation instance targeting
// obj, for use with World.Set/Get/Remove/Has: World.Set(id, rel.Of(target),
// value) reads naturally.
func (r Relation[T]) Of(obj Entity) Component[T] {
	return r.comp.Of(obj)
}

// With builds a filter requiring this relation, targeting obj, to be present.
func (r Relation[T]) With(obj Entity) Filter {
	return WithRelation(r.comp, obj)
}

// Without builds a filter requiring this relation, targeting obj, to be
// absent.
func (r Relation[T]) Without(obj Entity) Filter {
	return WithoutRelation(r.comp, obj)
}
