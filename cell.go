package silo

import (
	"reflect"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
)

// Subscriber observes events fired on one Cell (insert/modify/remove of a
// slot range at a tick). It returns whether it is still interested; once it
// returns false it is dropped from the cell's subscriber list.
type Subscriber interface {
	OnEvent(kind ChangeKind, slice Slice, tick uint64) bool
}

// SubscriberFunc adapts a plain function to the Subscriber interface.
type SubscriberFunc func(kind ChangeKind, slice Slice, tick uint64) bool

// OnEvent implements Subscriber.
func (f SubscriberFunc) OnEvent(kind ChangeKind, slice Slice, tick uint64) bool {
	return f(kind, slice, tick)
}

// cellGuard implements the single-writer XOR many-readers borrow contract
// spec.md §5 requires of column access: any number of concurrent readers,
// or exactly one writer, never both.
type cellGuard struct {
	state int32 // 0 = free, >0 = reader count, -1 = writer held
}

const cellGuardWriter int32 = -1

func (g *cellGuard) tryLockRead() bool {
	for {
		s := atomic.LoadInt32(&g.state)
		if s == cellGuardWriter {
			return false
		}
		if atomic.CompareAndSwapInt32(&g.state, s, s+1) {
			return true
		}
	}
}

func (g *cellGuard) unlockRead() {
	atomic.AddInt32(&g.state, -1)
}

func (g *cellGuard) tryLockWrite() bool {
	return atomic.CompareAndSwapInt32(&g.state, 0, cellGuardWriter)
}

func (g *cellGuard) unlockWrite() {
	atomic.CompareAndSwapInt32(&g.state, cellGuardWriter, 0)
}

// Cell is one archetype column plus its change-tracking metadata and
// subscriber list (spec.md §4.3, C3). Storage and changes are behind the
// same borrow guard: a read borrow lets callers inspect the column and its
// change lists, a write borrow is required to mutate either.
type Cell struct {
	col     *column
	changes *Changes
	guard   cellGuard
	subs    []Subscriber
}

func newCell(info ComponentInfo, typ reflect.Type) *Cell {
	return &Cell{
		col:     newColumn(info, typ),
		changes: newChanges(info),
	}
}

// Info returns the cell's component descriptor.
func (c *Cell) Info() ComponentInfo { return c.col.info }

// Len returns the number of live slots in the cell's column.
func (c *Cell) Len() int { return c.col.Len() }

// ValueType returns the component's Go type.
func (c *Cell) ValueType() reflect.Type { return c.col.valueType() }

// Changes returns the cell's change-tracking bundle.
func (c *Cell) Changes() *Changes { return c.changes }

// BorrowRead acquires a read borrow, returning the release function. Panics
// (wrapped via bark.AddTrace) if a writer already holds the cell, unless
// Config.panicOnBorrow is false, in which case it returns a nil release
// func and the BorrowConflictError.
func (c *Cell) BorrowRead() (release func(), err error) {
	if !c.guard.tryLockRead() {
		conflict := BorrowConflictError{Component: c.col.info.Key}
		if Config.panicOnBorrow {
			panic(bark.AddTrace(conflict))
		}
		return nil, conflict
	}
	return c.guard.unlockRead, nil
}

// BorrowWrite acquires an exclusive write borrow, returning the release
// function. Same panic/error contract as BorrowRead.
func (c *Cell) BorrowWrite() (release func(), err error) {
	if !c.guard.tryLockWrite() {
		conflict := BorrowConflictError{Component: c.col.info.Key}
		if Config.panicOnBorrow {
			panic(bark.AddTrace(conflict))
		}
		return nil, conflict
	}
	return c.guard.unlockWrite, nil
}

// Subscribe registers s to be called on every future event fired on this
// cell, until it returns false from OnEvent.
func (c *Cell) Subscribe(s Subscriber) {
	c.subs = append(c.subs, s)
}

func (c *Cell) notify(kind ChangeKind, slice Slice, tick uint64) {
	if len(c.subs) == 0 {
		return
	}
	live := c.subs[:0]
	for _, s := range c.subs {
		if s.OnEvent(kind, slice, tick) {
			live = append(live, s)
		}
	}
	c.subs = live
}

// PushZero appends a zero value, records an Inserted change at tick, and
// notifies subscribers. Returns the new slot.
func (c *Cell) PushZero(tick uint64) int {
	slot := c.col.pushZero()
	c.changes.SetInserted(Change{SingleSlice(slot), tick, ChangeKindInserted})
	c.notify(ChangeKindInserted, SingleSlice(slot), tick)
	return slot
}

// PushFrom copies src's value at srcSlot into a new tail slot of c,
// migrating src's change history for that slot to the new slot instead of
// recording a fresh Inserted — the value's presence is continuous across
// the archetype migration, not newly created.
func (c *Cell) PushFrom(src *Cell, srcSlot int) int {
	dstSlot := c.col.push(src.col.at(srcSlot))
	src.changes.MigrateTo(c.changes, srcSlot, dstSlot)
	return dstSlot
}

// SwapRemoveNoDrop behaves like SwapRemove but skips the column's drop
// hook: for use when the value at slot has already been migrated into
// another archetype's cell via PushFrom, so the bytes left behind in this
// column must not be double-dropped.
func (c *Cell) SwapRemoveNoDrop(slot int, tick uint64) (moved bool) {
	oldLen := c.col.Len()
	moved = c.col.swapRemoveNoDrop(slot)
	if moved {
		c.changes.SwapOut(slot, oldLen-1)
	} else {
		c.changes.RemoveSlot(slot)
	}
	c.changes.SetRemoved(Change{SingleSlice(slot), tick, ChangeKindRemoved})
	c.notify(ChangeKindRemoved, SingleSlice(slot), tick)
	return moved
}

// SwapRemove drops the value at slot (running the component's drop hook),
// swaps the last element into its place, fixes up the change history for
// the relocated element, and records a fresh Removed change at tick.
// Reports whether an element was relocated into slot.
func (c *Cell) SwapRemove(slot int, tick uint64) (moved bool) {
	oldLen := c.col.Len()
	moved = c.col.swapRemove(slot)
	if moved {
		c.changes.SwapOut(slot, oldLen-1)
	} else {
		c.changes.RemoveSlot(slot)
	}
	c.changes.SetRemoved(Change{SingleSlice(slot), tick, ChangeKindRemoved})
	c.notify(ChangeKindRemoved, SingleSlice(slot), tick)
	return moved
}

// Clear drops every value in the column and discards all change history.
func (c *Cell) Clear() {
	c.col.clear()
	c.changes = newChanges(c.col.info)
}

// CellGet returns a typed read pointer at slot, plus the borrow's release
// function.
func CellGet[T any](cell *Cell, slot int) (*T, func()) {
	release, err := cell.BorrowRead()
	if err != nil {
		return nil, func() {}
	}
	return columnGet[T](cell.col, slot), release
}

// CellGetMut returns a typed write pointer at slot, recording a Modified
// change at tick and notifying subscribers, plus the borrow's release
// function.
func CellGetMut[T any](cell *Cell, slot int, tick uint64) (*T, func()) {
	release, err := cell.BorrowWrite()
	if err != nil {
		return nil, func() {}
	}
	cell.changes.SetModified(Change{SingleSlice(slot), tick, ChangeKindModified})
	cell.notify(ChangeKindModified, SingleSlice(slot), tick)
	return columnGet[T](cell.col, slot), release
}

// SetValue writes rv into slot via reflection, recording a Modified change
// at tick. Used by World.Set's already-present-component fast path, where
// the caller already holds the world's structural lock so no separate
// borrow guard is taken here.
func (c *Cell) SetValue(slot int, rv reflect.Value, tick uint64) {
	reflect.NewAt(rv.Type(), c.col.at(slot)).Elem().Set(rv)
	c.changes.SetModified(Change{SingleSlice(slot), tick, ChangeKindModified})
	c.notify(ChangeKindModified, SingleSlice(slot), tick)
}

// GetValue returns a reflect.Value aliasing slot's current value.
func (c *Cell) GetValue(slot int) reflect.Value {
	return reflect.NewAt(c.col.typ, c.col.at(slot)).Elem()
}

// CellSlice returns a typed read-only view over every live slot.
func CellSlice[T any](cell *Cell) []T {
	return columnSlice[T](cell.col)
}
