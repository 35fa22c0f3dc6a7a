package silo

import "testing"

func TestSerializeRowMajorRoundTripPreservesComponentValues(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	health := FactoryNewComponent[testHealth]()

	a, _ := w.Spawn()
	w.Set(a, position, testPosition{X: 1, Y: 2})
	w.Set(a, health, testHealth{HP: 10})

	b, _ := w.Spawn()
	w.Set(b, position, testPosition{X: 3, Y: 4})

	ctx := NewSerializeContext(position, health)
	doc, err := ctx.EncodeRowMajor(w)
	if err != nil {
		t.Fatalf("EncodeRowMajor: %v", err)
	}
	if len(doc.Entities) != 2 {
		t.Fatalf("expected 2 entities in the document, got %d", len(doc.Entities))
	}

	decoded, remap, err := ctx.DecodeRowMajor(doc)
	if err != nil {
		t.Fatalf("DecodeRowMajor: %v", err)
	}

	newA := remap[uint64(a)]
	newB := remap[uint64(b)]

	posA, err := GetTyped(decoded, newA, position)
	if err != nil || posA.X != 1 || posA.Y != 2 {
		t.Fatalf("unexpected decoded position for a: %+v err %v", posA, err)
	}
	hpA, err := GetTyped(decoded, newA, health)
	if err != nil || hpA.HP != 10 {
		t.Fatalf("unexpected decoded health for a: %+v err %v", hpA, err)
	}

	posB, err := GetTyped(decoded, newB, position)
	if err != nil || posB.X != 3 || posB.Y != 4 {
		t.Fatalf("unexpected decoded position for b: %+v err %v", posB, err)
	}
	if has, _ := decoded.Has(newB, health); has {
		t.Fatalf("b never had health, expected decode to leave it absent")
	}
}

func TestSerializeColumnMajorRoundTripPreservesComponentValues(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	velocity := FactoryNewComponent[testVelocity]()

	a, _ := w.Spawn()
	w.Set(a, position, testPosition{X: 5, Y: 6})
	w.Set(a, velocity, testVelocity{X: 0.5, Y: -0.5})

	ctx := NewSerializeContext(position, velocity)
	doc, err := ctx.EncodeColumnMajor(w)
	if err != nil {
		t.Fatalf("EncodeColumnMajor: %v", err)
	}
	if len(doc.Components["silo.testPosition"]) != 1 {
		t.Fatalf("expected 1 column entry for testPosition, got %+v", doc.Components)
	}

	decoded, remap, err := ctx.DecodeColumnMajor(doc)
	if err != nil {
		t.Fatalf("DecodeColumnMajor: %v", err)
	}

	newA := remap[uint64(a)]
	pos, err := GetTyped(decoded, newA, position)
	if err != nil || pos.X != 5 || pos.Y != 6 {
		t.Fatalf("unexpected decoded position: %+v err %v", pos, err)
	}
	vel, err := GetTyped(decoded, newA, velocity)
	if err != nil || vel.X != 0.5 || vel.Y != -0.5 {
		t.Fatalf("unexpected decoded velocity: %+v err %v", vel, err)
	}
}

func TestSerializeContextSkipsComponentsOutsideItself(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	health := FactoryNewComponent[testHealth]()

	id, _ := w.Spawn()
	w.Set(id, position, testPosition{X: 1})
	w.Set(id, health, testHealth{HP: 99})

	ctx := NewSerializeContext(position)
	doc, err := ctx.EncodeRowMajor(w)
	if err != nil {
		t.Fatalf("EncodeRowMajor: %v", err)
	}
	if len(doc.Entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(doc.Entities))
	}
	if _, ok := doc.Entities[0].Components["silo.testHealth"]; ok {
		t.Fatalf("expected health to be excluded from the context, got %+v", doc.Entities[0].Components)
	}
	if _, ok := doc.Entities[0].Components["silo.testPosition"]; !ok {
		t.Fatalf("expected position to be included, got %+v", doc.Entities[0].Components)
	}
}
