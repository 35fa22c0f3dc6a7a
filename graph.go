package silo

import (
	"reflect"
	"sort"

	"github.com/TheBitDrifter/mask"
)

// entitySlot locates a live entity's row: which archetype and which slot
// within it.
type entitySlot struct {
	archetype archetypeID
	row       int
}

// entityMeta is the generational slab record for one entity index.
type entityMeta struct {
	generation uint16
	alive      bool
	slot       entitySlot
}

// EntityStore is a generational slab allocator over Entity ids (spec.md
// §4.5, C5). Despawning an index bumps its generation and returns it to the
// free list; a later Spawn reuses the index under a new generation, so any
// surviving handle holding the old generation is rejected by IsAlive rather
// than aliasing the new occupant (the ABA hazard the packed Entity format
// exists to prevent).
type EntityStore struct {
	kind    EntityKind
	records []entityMeta // records[0] is never used; index 0 means "no entity"
	free    []uint32
}

func newEntityStore(kind EntityKind) *EntityStore {
	return &EntityStore{kind: kind, records: make([]entityMeta, 1)}
}

// Spawn allocates a fresh entity pointing at slot, reusing a freed index
// when available.
func (s *EntityStore) Spawn(slot entitySlot) Entity {
	var idx uint32
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
		s.records[idx].alive = true
		s.records[idx].slot = slot
	} else {
		idx = uint32(len(s.records))
		s.records = append(s.records, entityMeta{alive: true, slot: slot})
	}
	return NewEntity(idx, s.records[idx].generation, s.kind)
}

// Despawn retires e, bumping its generation and freeing its index for
// reuse. Returns the slot it occupied and whether e was actually alive.
func (s *EntityStore) Despawn(e Entity) (entitySlot, bool) {
	idx := e.Index()
	if int(idx) >= len(s.records) {
		return entitySlot{}, false
	}
	rec := &s.records[idx]
	if !rec.alive || rec.generation != e.Generation() {
		return entitySlot{}, false
	}
	slot := rec.slot
	rec.alive = false
	rec.generation++
	s.free = append(s.free, idx)
	return slot, true
}

// IsAlive reports whether e refers to a currently-live entity at its
// expected generation.
func (s *EntityStore) IsAlive(e Entity) bool {
	idx := e.Index()
	if int(idx) >= len(s.records) {
		return false
	}
	rec := &s.records[idx]
	return rec.alive && rec.generation == e.Generation()
}

// Get returns e's current slot, if e is alive.
func (s *EntityStore) Get(e Entity) (entitySlot, bool) {
	if !s.IsAlive(e) {
		return entitySlot{}, false
	}
	return s.records[e.Index()].slot, true
}

// SetSlot updates e's slot in place, e.g. after a structural migration.
// The caller must have already verified e is alive.
func (s *EntityStore) SetSlot(e Entity, slot entitySlot) {
	s.records[e.Index()].slot = slot
}

// Len returns the number of currently-live entities.
func (s *EntityStore) Len() int {
	return len(s.records) - 1 - len(s.free)
}

// infoLookup resolves a ComponentKey to its static descriptor and Go type;
// World supplies this from its component registry and relation bookkeeping.
type infoLookup func(ComponentKey) (ComponentInfo, reflect.Type)

// ArchetypeGraph owns every archetype reachable from the empty root and the
// add/remove edges between them (spec.md §4.5). Lookup by exact signature
// is O(1) via bySig; moving along an edge is amortized O(1) once cached.
type ArchetypeGraph struct {
	nextID archetypeID
	byID   map[archetypeID]*archetype
	bySig  map[mask.Mask256]archetypeID
	root   archetypeID

	rowIndex map[ComponentKey]uint32
	nextRow  uint32
}

func newArchetypeGraph() *ArchetypeGraph {
	g := &ArchetypeGraph{
		nextID:   1,
		byID:     map[archetypeID]*archetype{},
		bySig:    map[mask.Mask256]archetypeID{},
		rowIndex: map[ComponentKey]uint32{},
	}
	root := newArchetype(g.nextID, nil, nil, mask.Mask256{})
	g.byID[g.nextID] = root
	g.bySig[mask.Mask256{}] = g.nextID
	g.root = g.nextID
	g.nextID++
	return g
}

// RowIndexFor returns the stable bit index assigned to key, minting one on
// first use. Mirrors the teacher's table.Schema.RowIndexFor convention
// (storage.go), adapted so it keys on ComponentKey instead of Component.
func (g *ArchetypeGraph) RowIndexFor(key ComponentKey) uint32 {
	if bit, ok := g.rowIndex[key]; ok {
		return bit
	}
	bit := g.nextRow
	g.nextRow++
	g.rowIndex[key] = bit
	return bit
}

// Root returns the empty-signature archetype every entity starts in.
func (g *ArchetypeGraph) Root() *archetype { return g.byID[g.root] }

// Archetype returns the archetype for id, or nil if it has been pruned.
func (g *ArchetypeGraph) Archetype(id archetypeID) *archetype { return g.byID[id] }

// Len returns the number of archetypes currently in the graph.
func (g *ArchetypeGraph) Len() int { return len(g.byID) }

// All calls fn for every archetype in the graph, in no particular order.
func (g *ArchetypeGraph) All(fn func(*archetype) bool) {
	for _, a := range g.byID {
		if !fn(a) {
			return
		}
	}
}

// FindArchetypes returns every archetype whose signature is a superset of
// required — the candidate set for a query's required-component mask
// (spec.md §4.9's find_archetypes).
func (g *ArchetypeGraph) FindArchetypes(required mask.Mask256) []*archetype {
	var out []*archetype
	for _, a := range g.byID {
		if a.sig.ContainsAll(required) {
			out = append(out, a)
		}
	}
	return out
}

func (g *ArchetypeGraph) signatureOf(keys []ComponentKey) mask.Mask256 {
	var m mask.Mask256
	for _, k := range keys {
		m.Mark(g.RowIndexFor(k))
	}
	return m
}

// findOrCreate returns the archetype carrying exactly this set of
// components, creating it (via lookup for any component's info/type not
// already known from an existing archetype) on a cache miss.
func (g *ArchetypeGraph) findOrCreate(keys []ComponentKey, lookup infoLookup) *archetype {
	sorted := append([]ComponentKey(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })

	sig := g.signatureOf(sorted)
	if id, ok := g.bySig[sig]; ok {
		return g.byID[id]
	}

	infos := make([]ComponentInfo, len(sorted))
	types := make([]reflect.Type, len(sorted))
	for i, k := range sorted {
		infos[i], types[i] = lookup(k)
		infos[i].Key = k
	}

	id := g.nextID
	g.nextID++
	a := newArchetype(id, infos, types, sig)
	g.byID[id] = a
	g.bySig[sig] = id
	return a
}

// ArchetypeWithAdded returns the neighbor reached by adding key (described
// by info/typ) to from's signature, creating it if needed and caching the
// edge in both directions.
func (g *ArchetypeGraph) ArchetypeWithAdded(from *archetype, key ComponentKey, info ComponentInfo, typ reflect.Type) *archetype {
	if id, ok := from.EdgeAdd(key); ok {
		if to, exists := g.byID[id]; exists {
			return to
		}
	}
	keys := append(append([]ComponentKey(nil), from.Keys()...), key)
	to := g.findOrCreate(keys, func(k ComponentKey) (ComponentInfo, reflect.Type) {
		if k == key {
			return info, typ
		}
		cell, _ := from.Cell(k)
		return cell.Info(), cell.ValueType()
	})
	from.SetEdgeAdd(key, to.id)
	to.SetEdgeRemove(key, from.id)
	return to
}

// ArchetypeWithRemoved returns the neighbor reached by removing key from
// from's signature, creating it if needed and caching the edge in both
// directions.
func (g *ArchetypeGraph) ArchetypeWithRemoved(from *archetype, key ComponentKey) *archetype {
	if id, ok := from.EdgeRemove(key); ok {
		if to, exists := g.byID[id]; exists {
			return to
		}
	}
	var keys []ComponentKey
	for _, k := range from.Keys() {
		if k != key {
			keys = append(keys, k)
		}
	}
	to := g.findOrCreate(keys, func(k ComponentKey) (ComponentInfo, reflect.Type) {
		cell, _ := from.Cell(k)
		return cell.Info(), cell.ValueType()
	})
	from.SetEdgeRemove(key, to.id)
	to.SetEdgeAdd(key, from.id)
	return to
}

// PruneArchetypes deletes every non-root archetype currently holding no
// entities, returning the number pruned. Cached edges pointing at a pruned
// archetype are left in place and treated as stale by
// ArchetypeWithAdded/Removed, which re-resolve through findOrCreate when
// the cached id no longer exists.
func (g *ArchetypeGraph) PruneArchetypes() int {
	pruned := 0
	for id, a := range g.byID {
		if id == g.root || !a.IsEmpty() {
			continue
		}
		delete(g.byID, id)
		delete(g.bySig, a.sig)
		pruned++
	}
	return pruned
}
