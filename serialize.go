package silo

import (
	"encoding/json"
	"reflect"
	"sort"
)

// SerializeContext enumerates exactly which components are included when
// serializing or deserializing a World; components outside the context are
// skipped silently, per spec.md §6's serialization format. Built on
// encoding/json rather than a pack dependency: the teacher carries no
// serialization layer of its own, and none of the domain deps wired
// elsewhere in this module (btree, mask, errgroup) offer a closer fit for an
// in-memory row/column codec, so this is the one deliberate stdlib choice
// (documented in DESIGN.md).
type SerializeContext struct {
	components map[ComponentKey]AnyComponent
}

// NewSerializeContext builds a context including exactly the given
// components. Components are matched by their full key: a relation instance
// is included only when its exact token (Relation[T].Of(target)) is passed;
// a target-less token such as Relation[T].Component() matches no instance.
func NewSerializeContext(components ...AnyComponent) *SerializeContext {
	ctx := &SerializeContext{components: map[ComponentKey]AnyComponent{}}
	for _, c := range components {
		ctx.components[c.Key()] = c
	}
	return ctx
}

// RowEntity is one entity's row in the row-major encoding: its serialized id
// and a component-name → JSON-value mapping restricted to the context.
type RowEntity struct {
	ID         uint64                     `json:"id"`
	Components map[string]json.RawMessage `json:"components"`
}

// RowDocument is the row-major encoding: entity_id → {component_name →
// value}, ordered by entity id.
type RowDocument struct {
	Entities []RowEntity `json:"entities"`
}

// ColumnEntry is one entity's value within a column-major component list.
type ColumnEntry struct {
	ID    uint64          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// ColumnDocument is the column-major encoding: per component name, an
// ordered list of (entity_id, value) pairs.
type ColumnDocument struct {
	Components map[string][]ColumnEntry `json:"components"`
}

// snapshotRows walks world under its lock, collecting (entity, key, value)
// triples restricted to ctx's components; the returned ids are ordered by
// entity id.
func (ctx *SerializeContext) snapshotRows(world *World) ([]Entity, map[Entity]map[ComponentKey]any) {
	world.mu.Lock()
	defer world.mu.Unlock()

	var ids []Entity
	values := map[Entity]map[ComponentKey]any{}
	world.graph.All(func(a *archetype) bool {
		for _, key := range a.Keys() {
			if _, ok := ctx.components[key]; !ok {
				continue
			}
			cell, _ := a.Cell(key)
			for slot := 0; slot < a.Len(); slot++ {
				e := a.EntityAt(slot)
				if values[e] == nil {
					values[e] = map[ComponentKey]any{}
					ids = append(ids, e)
				}
				values[e][key] = cell.GetValue(slot).Interface()
			}
		}
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, values
}

// EncodeRowMajor serializes world as a RowDocument restricted to ctx.
func (ctx *SerializeContext) EncodeRowMajor(world *World) (*RowDocument, error) {
	ids, values := ctx.snapshotRows(world)
	doc := &RowDocument{Entities: make([]RowEntity, 0, len(ids))}
	for _, id := range ids {
		row := RowEntity{ID: uint64(id), Components: map[string]json.RawMessage{}}
		for key, v := range values[id] {
			comp, ok := ctx.components[key]
			if !ok {
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			row.Components[comp.Info().Name] = raw
		}
		doc.Entities = append(doc.Entities, row)
	}
	return doc, nil
}

// EncodeColumnMajor serializes world as a ColumnDocument restricted to ctx.
func (ctx *SerializeContext) EncodeColumnMajor(world *World) (*ColumnDocument, error) {
	ids, values := ctx.snapshotRows(world)
	doc := &ColumnDocument{Components: map[string][]ColumnEntry{}}
	for _, id := range ids {
		for key, v := range values[id] {
			comp, ok := ctx.components[key]
			if !ok {
				continue
			}
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			name := comp.Info().Name
			doc.Components[name] = append(doc.Components[name], ColumnEntry{ID: uint64(id), Value: raw})
		}
	}
	return doc, nil
}

// componentByName resolves a serialized component name back to its token,
// for decode. Built from ctx's own registered components only: values for
// names outside the context are skipped silently, matching encode's rule.
func (ctx *SerializeContext) componentByName(name string) (AnyComponent, bool) {
	for _, c := range ctx.components {
		if c.Info().Name == name {
			return c, true
		}
	}
	return nil, false
}

// DecodeRowMajor builds a fresh World from doc, restricted to ctx's
// components. Entity ids are remapped: the returned map gives the
// doc-relative id each row was assigned to in the new world.
func (ctx *SerializeContext) DecodeRowMajor(doc *RowDocument) (*World, map[uint64]Entity, error) {
	world := newWorld()
	remap := make(map[uint64]Entity, len(doc.Entities))
	for _, row := range doc.Entities {
		id, err := world.Spawn()
		if err != nil {
			return nil, nil, err
		}
		remap[row.ID] = id
		for name, raw := range row.Components {
			comp, ok := ctx.componentByName(name)
			if !ok {
				continue
			}
			rv := reflect.New(comp.Info().Type)
			if err := json.Unmarshal(raw, rv.Interface()); err != nil {
				return nil, nil, err
			}
			if err := world.setTyped(id, comp.Key(), comp.Info(), comp.Info().Type, rv.Elem()); err != nil {
				return nil, nil, err
			}
		}
	}
	return world, remap, nil
}

// DecodeColumnMajor builds a fresh World from doc, restricted to ctx's
// components, the column-major counterpart of DecodeRowMajor.
func (ctx *SerializeContext) DecodeColumnMajor(doc *ColumnDocument) (*World, map[uint64]Entity, error) {
	world := newWorld()
	remap := map[uint64]Entity{}
	ensure := func(rawID uint64) (Entity, error) {
		if id, ok := remap[rawID]; ok {
			return id, nil
		}
		id, err := world.Spawn()
		if err != nil {
			return 0, err
		}
		remap[rawID] = id
		return id, nil
	}
	for name, entries := range doc.Components {
		comp, ok := ctx.componentByName(name)
		if !ok {
			continue
		}
		for _, entry := range entries {
			id, err := ensure(entry.ID)
			if err != nil {
				return nil, nil, err
			}
			rv := reflect.New(comp.Info().Type)
			if err := json.Unmarshal(entry.Value, rv.Interface()); err != nil {
				return nil, nil, err
			}
			if err := world.setTyped(id, comp.Key(), comp.Info(), comp.Info().Type, rv.Elem()); err != nil {
				return nil, nil, err
			}
		}
	}
	return world, remap, nil
}
