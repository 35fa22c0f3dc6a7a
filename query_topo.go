package silo

// TopoQuery2 wraps a Query2 so that IterBatched visits entities in
// topological order along relation: an archetype containing entities that
// relation-target another archetype is visited after the archetype it
// targets. Cycles are not revisited. Links where the base query doesn't
// match fall through and only affect ordering, never appear in the output
// (matching the original's documented behavior). Supplements the core spec;
// grounded in flax's Topo query strategy (original_source/src/query/topo.rs).
type TopoQuery2[A, B any] struct {
	base     *Query2[A, B]
	relation Entity
}

// NewTopoQuery2 builds a topological query following relation's instances.
func NewTopoQuery2[A, B any](relation Entity, fa fetchSpec[*A], fb fetchSpec[*B], filters ...Filter) *TopoQuery2[A, B] {
	return &TopoQuery2[A, B]{base: NewQuery2[A, B](fa, fb, filters...), relation: relation}
}

// Borrow binds the query to world and computes the archetype visitation
// order for this pass.
func (q *TopoQuery2[A, B]) Borrow(world *World) *TopoQueryBorrow2[A, B] {
	inner := q.base.Borrow(world)
	ordered := topoSortArchetypes(world, inner.archetypes, q.relation)
	inner.archetypes = ordered
	return &TopoQueryBorrow2[A, B]{QueryBorrow2: inner}
}

// TopoQueryBorrow2 is one borrow pass of a TopoQuery2; it exposes the same
// surface as QueryBorrow2, with IterBatched/Iter visiting archetypes in
// dependency order instead of the unspecified order a plain QueryBorrow2
// uses.
type TopoQueryBorrow2[A, B any] struct {
	*QueryBorrow2[A, B]
}

// topoSortArchetypes orders matched so that any archetype a matched entity's
// relation instance targets comes before the archetype containing that
// instance. Implements a DFS topological sort with a visited set that skips
// (rather than errors on) cycles, mirroring the original's State::update.
func topoSortArchetypes(world *World, matched []*archetype, relation Entity) []*archetype {
	index := make(map[archetypeID]int, len(matched))
	for i, a := range matched {
		index[a.id] = i
	}

	deps := make(map[archetypeID][]archetypeID)
	for _, a := range matched {
		var archDeps []archetypeID
		for _, key := range a.Keys() {
			if key.ID != relation || key.Target.IsNull() {
				continue
			}
			world.mu.Lock()
			targetSlot, ok := world.entities.Get(key.Target)
			world.mu.Unlock()
			if !ok {
				continue
			}
			archDeps = append(archDeps, targetSlot.archetype)
		}
		if len(archDeps) > 0 {
			deps[a.id] = archDeps
		}
	}

	var order []archetypeID
	visited := map[archetypeID]bool{}
	var visit func(id archetypeID)
	visit = func(id archetypeID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range deps[id] {
			visit(dep)
		}
		if _, ok := index[id]; ok {
			order = append(order, id)
		}
	}
	for _, a := range matched {
		visit(a.id)
	}

	out := make([]*archetype, 0, len(order))
	for _, id := range order {
		out = append(out, matched[index[id]])
	}
	return out
}
