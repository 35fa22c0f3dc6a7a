package silo

import (
	"reflect"
	"sync"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// World is the façade over the archetype graph and entity store (spec.md
// §4.6, C6). Every structural operation (Spawn, Despawn, Set/Remove when
// they change an entity's component set) takes the world's coarse lock;
// Cell borrows taken during query iteration use their own finer-grained
// guard and don't contend with unrelated components.
type World struct {
	mu sync.Mutex

	entities *EntityStore
	graph    *ArchetypeGraph

	archetypeGen uint64
	changeTick   uint64
	locked       bool

	compSubscribers map[ComponentKey][]Subscriber
}

func newWorld() *World {
	return &World{
		entities:        newEntityStore(EntityKindNormal),
		graph:           newArchetypeGraph(),
		compSubscribers: map[ComponentKey][]Subscriber{},
	}
}

func (w *World) nextTick() uint64 {
	w.changeTick++
	return w.changeTick
}

// ArchetypeGen returns the generation counter, bumped every time the
// archetype graph gains a new archetype. Query uses this to know when its
// cached archetype list needs refreshing.
func (w *World) ArchetypeGen() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.archetypeGen
}

// ChangeTick returns the current logical tick. It is advanced by Spawn,
// Despawn, Set and Remove (including the Set calls made by SpawnWith and
// MergeWith). Writes made through a query's mutable fetch are stamped with
// the tick read at Borrow and do not advance it.
func (w *World) ChangeTick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeTick
}

// Lock forbids structural operations (Spawn, Despawn, and any Set/Remove
// that would migrate an entity) until Unlock is called, so callers can
// hold Cell borrows without an archetype migration invalidating their
// slots underneath them. Schedule does not take this lock itself.
func (w *World) Lock() {
	w.mu.Lock()
	w.locked = true
	w.mu.Unlock()
}

// Unlock re-enables structural operations.
func (w *World) Unlock() {
	w.mu.Lock()
	w.locked = false
	w.mu.Unlock()
}

// Locked reports whether the world currently forbids structural operations.
func (w *World) Locked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locked
}

// Spawn creates a new entity with no components, placing it in the root
// archetype.
func (w *World) Spawn() (Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return 0, LockedStorageError{}
	}
	root := w.graph.Root()
	e := w.entities.Spawn(entitySlot{})
	slot := root.Allocate(e, w.nextTick())
	w.entities.SetSlot(e, entitySlot{archetype: root.id, row: slot})
	return e, nil
}

// Despawn retires id, running every present component's drop hook and
// freeing its index for reuse under a new generation.
func (w *World) Despawn(id Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return LockedStorageError{}
	}
	slot, ok := w.entities.Get(id)
	if !ok {
		return NotAliveError{ID: id}
	}
	a := w.graph.Archetype(slot.archetype)
	tick := w.nextTick()
	movedEntity, moved := a.Despawn(slot.row, tick)
	if moved {
		w.entities.SetSlot(movedEntity, entitySlot{archetype: a.id, row: slot.row})
	}
	w.entities.Despawn(id)
	return nil
}

// IsAlive reports whether id refers to a currently-live entity.
func (w *World) IsAlive(id Entity) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.entities.IsAlive(id)
}

// Has reports whether id currently carries comp.
func (w *World) Has(id Entity, comp AnyComponent) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	slot, ok := w.entities.Get(id)
	if !ok {
		return false, NotAliveError{ID: id}
	}
	a := w.graph.Archetype(slot.archetype)
	return a.Has(comp.Key()), nil
}

// Set assigns value to id's comp column, adding the column (and migrating
// id to the archetype that has it) if id didn't already carry comp.
func (w *World) Set(id Entity, comp AnyComponent, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	rv := reflect.ValueOf(value)
	return w.setLocked(id, comp.Key(), comp.Info(), rv.Type(), rv)
}

// setTyped is Set's implementation for callers that already hold a
// reflect.Value and reflect.Type (avoiding Set's reflect.ValueOf(any) step),
// such as the serialization codec. Unlike setLocked, it acquires w.mu itself.
func (w *World) setTyped(id Entity, key ComponentKey, info ComponentInfo, typ reflect.Type, rv reflect.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setLocked(id, key, info, typ, rv)
}

// setLocked is Set's implementation, callable with w.mu already held (used
// directly by MergeWith to avoid re-entrant locking).
func (w *World) setLocked(id Entity, key ComponentKey, info ComponentInfo, typ reflect.Type, rv reflect.Value) error {
	if w.locked {
		return LockedStorageError{}
	}
	slot, ok := w.entities.Get(id)
	if !ok {
		return NotAliveError{ID: id}
	}
	from := w.graph.Archetype(slot.archetype)
	tick := w.nextTick()

	if cell, has := from.Cell(key); has {
		cell.SetValue(slot.row, rv, tick)
		return nil
	}

	beforeLen := w.graph.Len()
	to := w.graph.ArchetypeWithAdded(from, key, info, typ)
	if w.graph.Len() != beforeLen {
		w.archetypeGen++
		w.wireSubscribers(to)
	}

	dstSlot, movedEntity, moved := from.MoveTo(to, slot.row, tick)
	if moved {
		w.entities.SetSlot(movedEntity, entitySlot{archetype: from.id, row: slot.row})
	}
	w.entities.SetSlot(id, entitySlot{archetype: to.id, row: dstSlot})

	cell, _ := to.Cell(key)
	cell.SetValue(dstSlot, rv, tick)
	return nil
}

// Remove drops comp from id, migrating id to the archetype without it.
// Returns MissingComponentError if id doesn't carry comp.
func (w *World) Remove(id Entity, comp AnyComponent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return LockedStorageError{}
	}
	slot, ok := w.entities.Get(id)
	if !ok {
		return NotAliveError{ID: id}
	}
	from := w.graph.Archetype(slot.archetype)
	key := comp.Key()
	if !from.Has(key) {
		return MissingComponentError{ID: id, Component: key}
	}

	tick := w.nextTick()
	beforeLen := w.graph.Len()
	to := w.graph.ArchetypeWithRemoved(from, key)
	if w.graph.Len() != beforeLen {
		w.archetypeGen++
		w.wireSubscribers(to)
	}

	dstSlot, movedEntity, moved := from.MoveTo(to, slot.row, tick)
	if moved {
		w.entities.SetSlot(movedEntity, entitySlot{archetype: from.id, row: slot.row})
	}
	w.entities.SetSlot(id, entitySlot{archetype: to.id, row: dstSlot})
	return nil
}

// Get copies id's comp value into out, which must be a non-nil pointer to
// comp's underlying type.
func (w *World) Get(id Entity, comp AnyComponent, out any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	slot, ok := w.entities.Get(id)
	if !ok {
		return NotAliveError{ID: id}
	}
	a := w.graph.Archetype(slot.archetype)
	cell, has := a.Cell(comp.Key())
	if !has {
		return MissingComponentError{ID: id, Component: comp.Key()}
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		panic(bark.AddTrace(TypeMismatchError{Expected: "non-nil pointer", Got: rv.Kind().String()}))
	}
	rv.Elem().Set(cell.GetValue(slot.row))
	return nil
}

// GetTyped returns a pointer to id's T component without the reflection
// overhead of Get, for callers that already hold a Component[T] token.
func GetTyped[T any](w *World, id Entity, comp Component[T]) (*T, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	slot, ok := w.entities.Get(id)
	if !ok {
		return nil, NotAliveError{ID: id}
	}
	a := w.graph.Archetype(slot.archetype)
	cell, has := a.Cell(comp.Key())
	if !has {
		return nil, MissingComponentError{ID: id, Component: comp.Key()}
	}
	return columnGet[T](cell.col, slot.row), nil
}

// EntryOrInsert ensures id carries comp, inserting value if it's currently
// missing, and reports whether it already existed. Exposed as a free
// function, rather than a World.Entry(id).OrInsert(...) method chain,
// since Go methods cannot themselves carry type parameters.
func EntryOrInsert[T any](w *World, id Entity, comp Component[T], value T) (existed bool, err error) {
	w.mu.Lock()
	slot, ok := w.entities.Get(id)
	if !ok {
		w.mu.Unlock()
		return false, NotAliveError{ID: id}
	}
	a := w.graph.Archetype(slot.archetype)
	if a.Has(comp.Key()) {
		w.mu.Unlock()
		return true, nil
	}
	w.mu.Unlock()
	return false, w.Set(id, comp, value)
}

// SubscribeComponent registers sub to be notified of every future
// insert/modify/remove event on comp's column, across every archetype that
// carries it (including ones created after this call).
func (w *World) SubscribeComponent(comp AnyComponent, sub Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := comp.Key()
	w.compSubscribers[key] = append(w.compSubscribers[key], sub)
	w.graph.All(func(a *archetype) bool {
		if cell, ok := a.Cell(key); ok {
			cell.Subscribe(sub)
		}
		return true
	})
}

func (w *World) wireSubscribers(a *archetype) {
	for _, key := range a.Keys() {
		for _, sub := range w.compSubscribers[key] {
			cell, _ := a.Cell(key)
			cell.Subscribe(sub)
		}
	}
}

// snapshotArchetypes returns every archetype whose signature is a superset
// of required, along with the archetype generation observed at the same
// instant (so a caller can detect whether its cache is stale without a
// second lock acquisition racing a concurrent structural change).
func (w *World) snapshotArchetypes(required mask.Mask256) ([]*archetype, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.graph.FindArchetypes(required), w.archetypeGen
}

// PruneArchetypes discards every empty, non-root archetype, returning how
// many were removed.
func (w *World) PruneArchetypes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.graph.PruneArchetypes()
	if n > 0 {
		w.archetypeGen++
	}
	return n
}

// MergeWith moves every entity from other into w under freshly spawned
// ids, recreating whatever archetypes are needed, and leaves other empty.
// Supplements the core spec; grounded in flax's World::merge_with
// (original_source/src/world.rs).
func (w *World) MergeWith(other *World) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	var sources []Entity
	other.graph.All(func(a *archetype) bool {
		for i := 0; i < a.Len(); i++ {
			sources = append(sources, a.EntityAt(i))
		}
		return true
	})

	// Spawn every destination entity first and record the old->new mapping
	// before replaying any components, so a relation's Target (itself one of
	// other's entity ids) can be rewritten to the id it was actually given
	// in w, matching original_source/src/world.rs's two-pass merge_with.
	remap := make(map[Entity]Entity, len(sources))
	for _, oldID := range sources {
		newID := w.entities.Spawn(entitySlot{})
		root := w.graph.Root()
		rootSlot := root.Allocate(newID, w.nextTick())
		w.entities.SetSlot(newID, entitySlot{archetype: root.id, row: rootSlot})
		remap[oldID] = newID
	}

	for _, oldID := range sources {
		slot, ok := other.entities.Get(oldID)
		if !ok {
			continue
		}
		srcArch := other.graph.Archetype(slot.archetype)
		newID := remap[oldID]

		for _, key := range srcArch.Keys() {
			cell, _ := srcArch.Cell(key)
			value := cell.GetValue(slot.row)

			if key.IsRelation() {
				target, ok := remap[key.Target]
				if !ok {
					// The relation's target wasn't among the merged
					// entities (it pointed outside other's live set);
					// there is no corresponding entity in w to retarget
					// to, so the relation instance is dropped rather than
					// replayed against a stale or foreign id.
					continue
				}
				key.Target = target
			}

			if err := w.setLocked(newID, key, cell.Info(), cell.ValueType(), value); err != nil {
				return err
			}
		}
	}

	other.graph = newArchetypeGraph()
	other.entities = newEntityStore(EntityKindNormal)
	return nil
}
