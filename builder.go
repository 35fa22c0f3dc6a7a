package silo

import "reflect"

// componentEntry is one pending (component, value) pair held by a
// ComponentBuffer before it's applied to a World.
type componentEntry struct {
	key   ComponentKey
	info  ComponentInfo
	typ   reflect.Type
	value reflect.Value
}

// ComponentBuffer collects component values for a single World.SpawnWith
// call. SpawnWith applies the staged values one at a time, so the buffer
// does not avoid the per-component migrations that a sequence of world.Set
// calls incurs. Supplements the core spec; grounded in flax's ComponentBuffer
// (original_source/src/entity/builder.rs, referenced by EntityBuilder).
type ComponentBuffer struct {
	entries []componentEntry
}

// NewComponentBuffer returns an empty ComponentBuffer.
func NewComponentBuffer() *ComponentBuffer {
	return &ComponentBuffer{}
}

// Set stages value for comp, overwriting any previously staged value for the
// same component.
func (b *ComponentBuffer) Set(comp AnyComponent, value any) *ComponentBuffer {
	rv := reflect.ValueOf(value)
	key := comp.Key()
	for i, e := range b.entries {
		if e.key == key {
			b.entries[i].value = rv
			return b
		}
	}
	b.entries = append(b.entries, componentEntry{key: key, info: comp.Info(), typ: rv.Type(), value: rv})
	return b
}

// Get returns the value currently staged for comp, if any.
func (b *ComponentBuffer) Get(comp AnyComponent) (any, bool) {
	key := comp.Key()
	for _, e := range b.entries {
		if e.key == key {
			return e.value.Interface(), true
		}
	}
	return nil, false
}

// Len reports how many components are currently staged.
func (b *ComponentBuffer) Len() int { return len(b.entries) }

// Clear discards every staged component, leaving the buffer reusable.
func (b *ComponentBuffer) Clear() {
	b.entries = b.entries[:0]
}

// EntityBuilder is a fluent wrapper over ComponentBuffer: Set returns the
// builder itself so calls chain, and Spawn both creates the entity and
// clears the builder for reuse, mirroring flax's EntityBuilder.
type EntityBuilder struct {
	buf ComponentBuffer
}

// NewEntityBuilder returns an empty EntityBuilder.
func NewEntityBuilder() *EntityBuilder {
	return &EntityBuilder{}
}

// Set stages value for comp and returns the builder for chaining.
func (eb *EntityBuilder) Set(comp AnyComponent, value any) *EntityBuilder {
	eb.buf.Set(comp, value)
	return eb
}

// Spawn creates a new entity in world carrying every staged component, then
// clears the builder so it can be reused for the next entity.
func (eb *EntityBuilder) Spawn(world *World) (Entity, error) {
	id, err := world.SpawnWith(&eb.buf)
	eb.buf.Clear()
	return id, err
}

// SpawnWith creates a new entity carrying every component staged in buf. It
// spawns the entity in the root archetype and then applies the staged
// components in order under one lock acquisition; each component not yet
// present migrates the entity once, so there is no single root-to-final
// migration.
func (w *World) SpawnWith(buf *ComponentBuffer) (Entity, error) {
	id, err := w.Spawn()
	if err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range buf.entries {
		if err := w.setLocked(id, e.key, e.info, e.typ, e.value); err != nil {
			return id, err
		}
	}
	return id, nil
}
