package silo

// fetchSpec is the uniform interface Query2/Query3/Query4 drive: fetchAt
// reads or writes the value at one slot, given the Cell a prior lookup
// bound to the visited archetype and the tick to stamp mutable writes
// with. The chunk-spanning Cell borrow is acquired once per archetype by
// the query borrow, not per slot (spec.md §4.7, C7 —
// Fetch/PreparedFetch/FetchItem family).
type fetchSpec[Out any] interface {
	key() ComponentKey
	isOptional() bool
	isMutable() bool
	lookup(a *archetype) (cell *Cell, ok bool)
	fetchAt(cell *Cell, slot int, tick uint64) Out
}

// FetchOf is the fetch built by Read, Mutable, Opt, and MaybeMut: it names
// one Component[T], whether access is mutable, and whether the entity is
// still yielded (with a nil pointer) when the archetype lacks the
// component.
type FetchOf[T any] struct {
	comp     Component[T]
	mutable  bool
	optional bool
}

// Read builds a read-only fetch: archetypes lacking comp are excluded.
func Read[T any](comp Component[T]) FetchOf[T] {
	return FetchOf[T]{comp: comp}
}

// Mutable builds a read-write fetch: archetypes lacking comp are excluded,
// and every slot visited is recorded as Modified at the current tick.
func Mutable[T any](comp Component[T]) FetchOf[T] {
	return FetchOf[T]{comp: comp, mutable: true}
}

// Opt builds a read-only fetch that doesn't exclude archetypes lacking
// comp; such archetypes yield a nil pointer for this slot.
func Opt[T any](comp Component[T]) FetchOf[T] {
	return FetchOf[T]{comp: comp, optional: true}
}

// MaybeMut builds a read-write fetch that doesn't exclude archetypes
// lacking comp, combining Opt's inclusiveness with Mutable's access mode.
func MaybeMut[T any](comp Component[T]) FetchOf[T] {
	return FetchOf[T]{comp: comp, mutable: true, optional: true}
}

func (f FetchOf[T]) key() ComponentKey { return f.comp.Key() }
func (f FetchOf[T]) isOptional() bool  { return f.optional }
func (f FetchOf[T]) isMutable() bool   { return f.mutable }

func (f FetchOf[T]) lookup(a *archetype) (cell *Cell, ok bool) {
	cell, has := a.Cell(f.comp.Key())
	if !has {
		return nil, f.optional
	}
	return cell, true
}

// fetchAt returns the value at slot. When mutable, it records a Modified
// change before returning, relying on the chunk-spanning write borrow the
// query borrow already holds rather than re-acquiring one per slot. cell
// may be nil for an absent Optional column, in which case it returns nil.
func (f FetchOf[T]) fetchAt(cell *Cell, slot int, tick uint64) *T {
	if cell == nil {
		return nil
	}
	if f.mutable {
		cell.Changes().SetModified(Change{SingleSlice(slot), tick, ChangeKindModified})
		cell.notify(ChangeKindModified, SingleSlice(slot), tick)
	}
	return columnGet[T](cell.col, slot)
}

// FetchCloned is built by Cloned and Copied: a read-only fetch that yields
// T by value rather than by pointer, for components the caller wants to
// snapshot rather than borrow across the iteration.
type FetchCloned[T any] struct {
	comp Component[T]
}

// Cloned builds a by-value fetch for comp.
func Cloned[T any](comp Component[T]) FetchCloned[T] { return FetchCloned[T]{comp: comp} }

// Copied is Cloned's semantic twin, named for components that are already
// plain copy types (spec.md's Cloned/Copied fetch pair).
func Copied[T any](comp Component[T]) FetchCloned[T] { return FetchCloned[T]{comp: comp} }

func (f FetchCloned[T]) key() ComponentKey { return f.comp.Key() }
func (f FetchCloned[T]) isOptional() bool  { return false }
func (f FetchCloned[T]) isMutable() bool   { return false }

func (f FetchCloned[T]) lookup(a *archetype) (cell *Cell, ok bool) {
	return a.Cell(f.comp.Key())
}

func (f FetchCloned[T]) fetchAt(cell *Cell, slot int, _ uint64) T {
	return *columnGet[T](cell.col, slot)
}
