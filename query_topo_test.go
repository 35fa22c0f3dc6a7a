package silo

import "testing"

func TestTopoQuery2VisitsParentsBeforeChildren(t *testing.T) {
	w := newWorld()
	rank := FactoryNewComponent[testHealth]()
	childOf := FactoryNewRelation[struct{}]()

	grandparent, _ := w.Spawn()
	w.Set(grandparent, rank, testHealth{HP: 0})

	parent, _ := w.Spawn()
	w.Set(parent, rank, testHealth{HP: 0})
	w.Set(parent, childOf.Of(grandparent), struct{}{})

	child, _ := w.Spawn()
	w.Set(child, rank, testHealth{HP: 0})
	w.Set(child, childOf.Of(parent), struct{}{})

	q := NewTopoQuery2(childOf.Component().Key().ID, Mutable(rank), Read(rank))
	borrow := q.Borrow(w)

	position := map[Entity]int{}
	i := 0
	for e, _, _ := range borrow.Iter() {
		position[e] = i
		i++
	}

	if position[grandparent] >= position[parent] {
		t.Fatalf("expected grandparent before parent: %+v", position)
	}
	if position[parent] >= position[child] {
		t.Fatalf("expected parent before child: %+v", position)
	}
}
