package silo

import (
	"reflect"

	"github.com/TheBitDrifter/mask"
	"github.com/google/btree"
)

// archetypeID identifies one archetype within a World's graph. Zero is
// never assigned, mirroring Entity's reserved-zero convention.
type archetypeID uint32

// cellEntry is the btree.Item wrapping one archetype column's Cell, ordered
// by ComponentKey — the BTreeMap<ComponentKey, Cell> of spec.md §4.4.
// Grounded in google/btree's classic (non-generic) Item interface, used
// the same way erigon's history_reader_v3.go indexes ordered records.
type cellEntry struct {
	key  ComponentKey
	cell *Cell
}

func (e *cellEntry) Less(than btree.Item) bool {
	return e.key.Less(than.(*cellEntry).key)
}

// archetype is one exact-component-set storage bucket: an ordered set of
// Cells (one column per ComponentKey), a parallel entity-id row, and a
// cache of edges to neighboring archetypes that differ by exactly one
// component (spec.md §4.4, C4).
type archetype struct {
	id   archetypeID
	keys []ComponentKey // canonical ascending order, cached from cells
	sig  mask.Mask256

	cells    *btree.BTree
	entities []Entity

	addEdges    map[ComponentKey]archetypeID
	removeEdges map[ComponentKey]archetypeID
}

// newArchetype builds an archetype from already-sorted component infos and
// their reflect types (the caller, ArchetypeGraph.findOrCreate, is
// responsible for sorting by ComponentKey.Less before calling this).
func newArchetype(id archetypeID, infos []ComponentInfo, types []reflect.Type, sig mask.Mask256) *archetype {
	a := &archetype{
		id:          id,
		sig:         sig,
		cells:       btree.New(8),
		addEdges:    map[ComponentKey]archetypeID{},
		removeEdges: map[ComponentKey]archetypeID{},
	}
	a.keys = make([]ComponentKey, len(infos))
	for i, info := range infos {
		a.keys[i] = info.Key
		a.cells.ReplaceOrInsert(&cellEntry{key: info.Key, cell: newCell(info, types[i])})
	}
	return a
}

// ID returns the archetype's identity within its graph.
func (a *archetype) ID() archetypeID { return a.id }

// Signature returns the bitmask identifying this archetype's component set.
func (a *archetype) Signature() mask.Mask256 { return a.sig }

// Keys returns the archetype's component keys in canonical ascending order.
// The returned slice must not be mutated.
func (a *archetype) Keys() []ComponentKey { return a.keys }

// Len returns the number of entities stored in this archetype.
func (a *archetype) Len() int { return len(a.entities) }

// IsEmpty reports whether the archetype currently holds no entities.
func (a *archetype) IsEmpty() bool { return len(a.entities) == 0 }

// Cell returns the column for key, if this archetype has it.
func (a *archetype) Cell(key ComponentKey) (*Cell, bool) {
	item := a.cells.Get(&cellEntry{key: key})
	if item == nil {
		return nil, false
	}
	return item.(*cellEntry).cell, true
}

// Has reports whether this archetype carries a column for key.
func (a *archetype) Has(key ComponentKey) bool {
	_, ok := a.Cell(key)
	return ok
}

// EachCell visits every cell in canonical key order. Visiting stops early
// if fn returns false.
func (a *archetype) EachCell(fn func(key ComponentKey, cell *Cell) bool) {
	a.cells.Ascend(func(i btree.Item) bool {
		e := i.(*cellEntry)
		return fn(e.key, e.cell)
	})
}

// EntityAt returns the entity occupying slot.
func (a *archetype) EntityAt(slot int) Entity { return a.entities[slot] }

// EdgeAdd returns the neighbor reached by adding key to this archetype's
// signature, if previously cached.
func (a *archetype) EdgeAdd(key ComponentKey) (archetypeID, bool) {
	id, ok := a.addEdges[key]
	return id, ok
}

// SetEdgeAdd caches the neighbor reached by adding key.
func (a *archetype) SetEdgeAdd(key ComponentKey, id archetypeID) { a.addEdges[key] = id }

// EdgeRemove returns the neighbor reached by removing key from this
// archetype's signature, if previously cached.
func (a *archetype) EdgeRemove(key ComponentKey) (archetypeID, bool) {
	id, ok := a.removeEdges[key]
	return id, ok
}

// SetEdgeRemove caches the neighbor reached by removing key.
func (a *archetype) SetEdgeRemove(key ComponentKey, id archetypeID) { a.removeEdges[key] = id }

// Allocate appends a new, zero-initialized row for e and returns its slot.
func (a *archetype) Allocate(e Entity, tick uint64) int {
	slot := len(a.entities)
	a.entities = append(a.entities, e)
	a.EachCell(func(_ ComponentKey, cell *Cell) bool {
		cell.PushZero(tick)
		return true
	})
	return slot
}

// Despawn removes slot outright, running every column's drop hook, and
// swaps the last row into its place. Reports the entity relocated into
// slot, if any.
func (a *archetype) Despawn(slot int, tick uint64) (movedEntity Entity, moved bool) {
	last := len(a.entities) - 1
	a.EachCell(func(_ ComponentKey, cell *Cell) bool {
		cell.SwapRemove(slot, tick)
		return true
	})
	if slot != last {
		a.entities[slot] = a.entities[last]
		movedEntity, moved = a.entities[slot], true
	}
	a.entities = a.entities[:last]
	return movedEntity, moved
}

// MoveTo migrates the row at srcSlot into dst: columns common to both
// archetypes are byte-copied with their change history carried forward,
// columns only dst has are zero-initialized, and columns only a has are
// dropped. Reports the new slot in dst, and the entity (if any) relocated
// into srcSlot in a as a result of the swap-remove.
func (a *archetype) MoveTo(dst *archetype, srcSlot int, tick uint64) (dstSlot int, movedEntity Entity, moved bool) {
	e := a.entities[srcSlot]
	dstSlot = len(dst.entities)
	dst.entities = append(dst.entities, e)

	dst.EachCell(func(key ComponentKey, cell *Cell) bool {
		if srcCell, ok := a.Cell(key); ok {
			cell.PushFrom(srcCell, srcSlot)
		} else {
			cell.PushZero(tick)
		}
		return true
	})

	last := len(a.entities) - 1
	a.EachCell(func(key ComponentKey, cell *Cell) bool {
		if dst.Has(key) {
			cell.SwapRemoveNoDrop(srcSlot, tick)
		} else {
			cell.SwapRemove(srcSlot, tick)
		}
		return true
	})
	if srcSlot != last {
		a.entities[srcSlot] = a.entities[last]
		movedEntity, moved = a.entities[srcSlot], true
	}
	a.entities = a.entities[:last]

	return dstSlot, movedEntity, moved
}

// Clear drops every row and discards all column data, leaving the
// archetype's shape (keys, edges) intact but empty.
func (a *archetype) Clear() {
	a.EachCell(func(_ ComponentKey, cell *Cell) bool {
		cell.Clear()
		return true
	})
	a.entities = nil
}
