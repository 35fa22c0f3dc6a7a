package silo

import "testing"

type testPosition struct{ X, Y float64 }
type testVelocity struct{ X, Y float64 }
type testHealth struct{ HP int }

func TestWorldSpawnDespawnAliveness(t *testing.T) {
	w := newWorld()
	id, err := w.Spawn()
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !w.IsAlive(id) {
		t.Fatalf("expected %v alive after spawn", id)
	}
	if err := w.Despawn(id); err != nil {
		t.Fatalf("Despawn: %v", err)
	}
	if w.IsAlive(id) {
		t.Fatalf("expected %v not alive after despawn", id)
	}
}

func TestWorldSpawnReusesIndexWithBumpedGeneration(t *testing.T) {
	w := newWorld()
	first, _ := w.Spawn()
	if err := w.Despawn(first); err != nil {
		t.Fatalf("Despawn: %v", err)
	}
	second, _ := w.Spawn()
	if second.Index() != first.Index() {
		t.Fatalf("expected reused index, got %d vs %d", second.Index(), first.Index())
	}
	if second.Generation() <= first.Generation() {
		t.Fatalf("expected bumped generation, got %d vs %d", second.Generation(), first.Generation())
	}
	if w.IsAlive(first) {
		t.Fatalf("stale handle %v should not be alive", first)
	}
}

func TestWorldSetAddsComponentAndMigrates(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()

	id, _ := w.Spawn()
	if has, _ := w.Has(id, position); has {
		t.Fatalf("fresh entity should not have position")
	}
	if err := w.Set(id, position, testPosition{X: 1, Y: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if has, _ := w.Has(id, position); !has {
		t.Fatalf("expected position after Set")
	}
	got, err := GetTyped(w, id, position)
	if err != nil {
		t.Fatalf("GetTyped: %v", err)
	}
	if got.X != 1 || got.Y != 2 {
		t.Fatalf("unexpected value %+v", *got)
	}
}

func TestWorldSetInPlaceDoesNotMigrate(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()

	id, _ := w.Spawn()
	w.Set(id, position, testPosition{X: 1, Y: 1})
	slotBefore, _ := w.entities.Get(id)

	w.Set(id, position, testPosition{X: 9, Y: 9})
	slotAfter, _ := w.entities.Get(id)

	if slotBefore.archetype != slotAfter.archetype || slotBefore.row != slotAfter.row {
		t.Fatalf("expected in-place update, got migration %+v -> %+v", slotBefore, slotAfter)
	}
	got, _ := GetTyped(w, id, position)
	if got.X != 9 {
		t.Fatalf("expected updated value, got %+v", *got)
	}
}

func TestWorldRemoveMissingComponentFails(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	id, _ := w.Spawn()

	err := w.Remove(id, position)
	if _, ok := err.(MissingComponentError); !ok {
		t.Fatalf("expected MissingComponentError, got %v", err)
	}
}

func TestWorldMoveToPreservesOtherEntityIdentity(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	velocity := FactoryNewComponent[testVelocity]()

	a, _ := w.Spawn()
	w.Set(a, position, testPosition{X: 1})
	b, _ := w.Spawn()
	w.Set(b, position, testPosition{X: 2})

	// Removing position from a migrates it out of the (position) archetype,
	// swap-removing its row; b, if it happened to occupy the last row,
	// must land at a's old slot with its identity and value intact.
	w.Remove(a, position)

	gotB, err := GetTyped(w, b, position)
	if err != nil {
		t.Fatalf("GetTyped(b): %v", err)
	}
	if gotB.X != 2 {
		t.Fatalf("expected b's value preserved, got %+v", *gotB)
	}
	_ = velocity
}

func TestWorldLockRejectsStructuralOps(t *testing.T) {
	w := newWorld()
	w.Lock()
	defer w.Unlock()

	if _, err := w.Spawn(); err == nil {
		t.Fatalf("expected LockedStorageError from Spawn")
	}
}

func TestEntryOrInsert(t *testing.T) {
	w := newWorld()
	health := FactoryNewComponent[testHealth]()
	id, _ := w.Spawn()

	existed, err := EntryOrInsert(w, id, health, testHealth{HP: 10})
	if err != nil {
		t.Fatalf("EntryOrInsert: %v", err)
	}
	if existed {
		t.Fatalf("expected not existed on first call")
	}

	existed, err = EntryOrInsert(w, id, health, testHealth{HP: 999})
	if err != nil {
		t.Fatalf("EntryOrInsert: %v", err)
	}
	if !existed {
		t.Fatalf("expected existed on second call")
	}
	got, _ := GetTyped(w, id, health)
	if got.HP != 10 {
		t.Fatalf("second EntryOrInsert must not overwrite, got %+v", *got)
	}
}

func TestWorldMergeWith(t *testing.T) {
	dst := newWorld()
	src := newWorld()
	position := FactoryNewComponent[testPosition]()

	id, _ := src.Spawn()
	src.Set(id, position, testPosition{X: 5, Y: 6})

	if err := dst.MergeWith(src); err != nil {
		t.Fatalf("MergeWith: %v", err)
	}
	if src.entities.Len() != 0 {
		t.Fatalf("expected src drained, got %d entities", src.entities.Len())
	}

	found := false
	dst.graph.All(func(a *archetype) bool {
		if !a.Has(position.Key()) {
			return true
		}
		for i := 0; i < a.Len(); i++ {
			found = true
		}
		return true
	})
	if !found {
		t.Fatalf("expected merged entity to carry position in dst")
	}
}

// TestWorldMergeWithRemapsRelationTargets covers the case the plain-component
// merge test above doesn't: a relation's Target names an entity from src,
// which MergeWith must rewrite to that entity's freshly assigned id in dst,
// not replay unchanged (it would otherwise name a foreign or dead entity
// once src is drained).
func TestWorldMergeWithRemapsRelationTargets(t *testing.T) {
	dst := newWorld()
	src := newWorld()
	childOf := FactoryNewRelation[struct{}]()

	// Occupy dst's first indices so the ids MergeWith assigns cannot
	// coincide with src's raw ids.
	dst.Spawn()
	dst.Spawn()

	parent, _ := src.Spawn()
	child, _ := src.Spawn()
	if err := src.Set(child, childOf.Of(parent), struct{}{}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := dst.MergeWith(src); err != nil {
		t.Fatalf("MergeWith: %v", err)
	}

	var parents, children []Entity
	dst.graph.All(func(a *archetype) bool {
		for _, key := range a.Keys() {
			if key.ID != childOf.Component().Key().ID || key.Target.IsNull() {
				continue
			}
			for i := 0; i < a.Len(); i++ {
				children = append(children, a.EntityAt(i))
				parents = append(parents, key.Target)
			}
		}
		return true
	})

	if len(children) != 1 {
		t.Fatalf("expected exactly one merged relation instance, got %d", len(children))
	}
	newParent := parents[0]
	if newParent == parent {
		t.Fatalf("expected relation Target to be remapped off src's entity id %v, got unchanged", parent)
	}
	if !dst.IsAlive(newParent) {
		t.Fatalf("expected remapped Target %v to name a live entity in dst", newParent)
	}
	hasRelation, err := dst.Has(children[0], childOf.Of(newParent))
	if err != nil || !hasRelation {
		t.Fatalf("expected child to carry childOf(remapped parent), got %v err %v", hasRelation, err)
	}
}
