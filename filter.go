package silo

import "github.com/TheBitDrifter/mask"

// Filter narrows which archetypes and which slots within them a Query
// visits (spec.md §4.8, C8). Static filters (With/Without/relations) are
// evaluated once per archetype when the query's cache is rebuilt; dynamic
// filters (modified/inserted/removed) are evaluated once per slot during
// iteration since they depend on the tick the caller last observed.
type Filter interface {
	// MatchesArchetype reports whether a passes this filter's static part.
	MatchesArchetype(a *archetype) bool
	// MatchesSlot reports whether slot within an archetype already known
	// to satisfy MatchesArchetype also passes this filter's dynamic part,
	// given the tick the caller last observed this query (0 means "never").
	MatchesSlot(a *archetype, slot int, sinceTick uint64) bool
}

// withFilter requires key to be present.
type withFilter struct{ key ComponentKey }

// With builds a filter requiring comp to be present on the archetype.
func With(comp AnyComponent) Filter { return withFilter{key: comp.Key()} }

// WithRelation builds a filter requiring a relation instance of rel
// targeting obj to be present.
func WithRelation(rel AnyComponent, obj Entity) Filter {
	return withFilter{key: ComponentKey{ID: rel.Key().ID, Target: obj}}
}

func (f withFilter) MatchesArchetype(a *archetype) bool { return a.Has(f.key) }
func (f withFilter) MatchesSlot(*archetype, int, uint64) bool { return true }

// withoutFilter requires key to be absent.
type withoutFilter struct{ key ComponentKey }

// Without builds a filter requiring comp to be absent from the archetype.
func Without(comp AnyComponent) Filter { return withoutFilter{key: comp.Key()} }

// WithoutRelation builds a filter requiring a relation instance of rel
// targeting obj to be absent.
func WithoutRelation(rel AnyComponent, obj Entity) Filter {
	return withoutFilter{key: ComponentKey{ID: rel.Key().ID, Target: obj}}
}

func (f withoutFilter) MatchesArchetype(a *archetype) bool { return !a.Has(f.key) }
func (f withoutFilter) MatchesSlot(*archetype, int, uint64) bool { return true }

// changeFilter is the dynamic filter family: modified/inserted/removed.
type changeFilter struct {
	key  ComponentKey
	kind ChangeKind
}

// Modified builds a filter matching only slots whose comp value changed
// strictly after the tick the caller last observed this query.
func Modified(comp AnyComponent) Filter { return changeFilter{key: comp.Key(), kind: ChangeKindModified} }

// Inserted builds a filter matching only slots where comp was inserted
// strictly after the last-observed tick.
func Inserted(comp AnyComponent) Filter { return changeFilter{key: comp.Key(), kind: ChangeKindInserted} }

// Removed builds a filter matching only slots where comp was removed
// strictly after the last-observed tick. It matches only archetypes that
// still carry comp's column, so it sees Removed records left on that
// column (for example by Despawn), not entities that migrated away.
func Removed(comp AnyComponent) Filter { return changeFilter{key: comp.Key(), kind: ChangeKindRemoved} }

func (f changeFilter) MatchesArchetype(a *archetype) bool { return a.Has(f.key) }

func (f changeFilter) MatchesSlot(a *archetype, slot int, sinceTick uint64) bool {
	cell, ok := a.Cell(f.key)
	if !ok {
		return false
	}
	list := cell.Changes().ByKind(f.kind)
	for i := 0; i < list.Len(); i++ {
		c := list.At(i)
		if c.Slice.Contains(slot) && c.Tick > sinceTick {
			return true
		}
	}
	return false
}

// andFilter requires every child filter to match.
type andFilter struct{ children []Filter }

// And combines filters so that all of them must match.
func And(filters ...Filter) Filter { return andFilter{children: filters} }

func (f andFilter) MatchesArchetype(a *archetype) bool {
	for _, c := range f.children {
		if !c.MatchesArchetype(a) {
			return false
		}
	}
	return true
}

func (f andFilter) MatchesSlot(a *archetype, slot int, sinceTick uint64) bool {
	for _, c := range f.children {
		if !c.MatchesSlot(a, slot, sinceTick) {
			return false
		}
	}
	return true
}

// orFilter requires at least one child filter to match.
type orFilter struct{ children []Filter }

// Or combines filters so that at least one of them must match.
func Or(filters ...Filter) Filter { return orFilter{children: filters} }

func (f orFilter) MatchesArchetype(a *archetype) bool {
	for _, c := range f.children {
		if c.MatchesArchetype(a) {
			return true
		}
	}
	return len(f.children) == 0
}

func (f orFilter) MatchesSlot(a *archetype, slot int, sinceTick uint64) bool {
	for _, c := range f.children {
		if c.MatchesSlot(a, slot, sinceTick) {
			return true
		}
	}
	return len(f.children) == 0
}

// notFilter inverts a single child filter.
type notFilter struct{ child Filter }

// Not inverts filter.
func Not(filter Filter) Filter { return notFilter{child: filter} }

func (f notFilter) MatchesArchetype(a *archetype) bool { return !f.child.MatchesArchetype(a) }
func (f notFilter) MatchesSlot(a *archetype, slot int, sinceTick uint64) bool {
	return !f.child.MatchesSlot(a, slot, sinceTick)
}

// comparisonFilter implements the gt/ge/lt/le/eq family over an ordered
// component value, evaluated per slot.
type comparisonFilter[T comparable] struct {
	comp Component[T]
	op   func(v T) bool
}

// FilterCompare builds a filter over comp's value at each slot using a
// caller-supplied predicate — the basis for the spec's gt/ge/lt/le/eq
// comparison filters (e.g. silo.FilterCompare(health, func(h int) bool {
// return h < 10 })).
func FilterCompare[T comparable](comp Component[T], op func(T) bool) Filter {
	return comparisonFilter[T]{comp: comp, op: op}
}

func (f comparisonFilter[T]) MatchesArchetype(a *archetype) bool { return a.Has(f.comp.Key()) }

func (f comparisonFilter[T]) MatchesSlot(a *archetype, slot int, _ uint64) bool {
	cell, ok := a.Cell(f.comp.Key())
	if !ok {
		return false
	}
	v, release := CellGet[T](cell, slot)
	defer release()
	return f.op(*v)
}

// requiredMaskOf builds the archetype bitmask implied by a list of static
// With-style keys, for the coarse find_archetypes scan a Query runs before
// applying per-archetype filters exactly.
func requiredMaskOf(g *ArchetypeGraph, keys []ComponentKey) mask.Mask256 {
	var m mask.Mask256
	for _, k := range keys {
		m.Mark(g.RowIndexFor(k))
	}
	return m
}
