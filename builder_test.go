package silo

import "testing"

func TestEntityBuilderSpawnsWithAllStagedComponents(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	velocity := FactoryNewComponent[testVelocity]()

	eb := NewEntityBuilder().
		Set(position, testPosition{X: 1, Y: 2}).
		Set(velocity, testVelocity{X: 3, Y: 4})

	id, err := eb.Spawn(w)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	pos, err := GetTyped(w, id, position)
	if err != nil || pos.X != 1 || pos.Y != 2 {
		t.Fatalf("unexpected position %+v err %v", pos, err)
	}
	vel, err := GetTyped(w, id, velocity)
	if err != nil || vel.X != 3 || vel.Y != 4 {
		t.Fatalf("unexpected velocity %+v err %v", vel, err)
	}
}

func TestEntityBuilderReusableAfterSpawn(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()

	eb := NewEntityBuilder().Set(position, testPosition{X: 1})
	first, _ := eb.Spawn(w)

	eb.Set(position, testPosition{X: 2})
	second, _ := eb.Spawn(w)

	if first == second {
		t.Fatalf("expected distinct entities")
	}
	firstPos, _ := GetTyped(w, first, position)
	secondPos, _ := GetTyped(w, second, position)
	if firstPos.X != 1 || secondPos.X != 2 {
		t.Fatalf("builder reuse leaked state: %+v, %+v", *firstPos, *secondPos)
	}
}

func TestComponentBufferGetReturnsStagedValue(t *testing.T) {
	position := FactoryNewComponent[testPosition]()
	buf := NewComponentBuffer()
	buf.Set(position, testPosition{X: 7})

	v, ok := buf.Get(position)
	if !ok {
		t.Fatalf("expected staged value present")
	}
	if v.(testPosition).X != 7 {
		t.Fatalf("unexpected value %+v", v)
	}
}
