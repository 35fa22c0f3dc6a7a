package silo

import (
	"reflect"
	"unsafe"
)

// column is a type-erased, contiguous buffer holding values of one
// component type: the storage primitive of spec.md §4.1 (C1). It grows by
// doubling from 4 and never allocates backing bytes for zero-sized types.
//
// Grounded in delaneyj-arche's ecs/storage.go (a reflect.Value-backed,
// unsafe-pointer-indexed buffer); generalized here to expose the
// push/swap-remove/append/extend contract the spec requires, including
// explicit drop-hook invocation on removal.
type column struct {
	info ComponentInfo

	buffer reflect.Value // addressable [cap]T array, invalid until first grow
	base   unsafe.Pointer
	typ    reflect.Type
	length int
	cap    int
	isZST  bool
}

func newColumn(info ComponentInfo, typ reflect.Type) *column {
	c := &column{info: info, typ: typ, isZST: typ.Size() == 0}
	if !c.isZST {
		c.growTo(4)
	}
	return c
}

func newColumnWithCapacity(info ComponentInfo, typ reflect.Type, n int) *column {
	c := &column{info: info, typ: typ, isZST: typ.Size() == 0}
	if !c.isZST && n > 0 {
		c.growTo(n)
	}
	return c
}

func (c *column) growTo(n int) {
	newBuf := reflect.New(reflect.ArrayOf(n, c.typ)).Elem()
	if c.buffer.IsValid() {
		reflect.Copy(newBuf, c.buffer)
	}
	c.buffer = newBuf
	c.base = newBuf.Addr().UnsafePointer()
	c.cap = n
}

// Len returns the number of live elements.
func (c *column) Len() int { return c.length }

// valueType returns the column's element type.
func (c *column) valueType() reflect.Type { return c.typ }

// Cap returns the backing array's capacity. ZSTs report 0 here even though
// they never run out of "room", matching spec.md's "ZST never allocates
// but may report cap > 0 logically" note loosely: we report the logical
// capacity of zero since there is no buffer to bound.
func (c *column) Cap() int { return c.cap }

func (c *column) reserve(n int) {
	if c.isZST {
		return
	}
	needed := c.length + n
	if needed <= c.cap {
		return
	}
	newCap := c.cap
	if newCap == 0 {
		newCap = 4
	}
	for newCap < needed {
		newCap *= 2
	}
	c.growTo(newCap)
}

// at returns an unsafe pointer to the slot'th element. Valid until the next
// mutating call on c (push/append/extend may reallocate the buffer).
func (c *column) at(slot int) unsafe.Pointer {
	if c.isZST {
		return unsafe.Pointer(c)
	}
	return unsafe.Add(c.base, uintptr(slot)*c.typ.Size())
}

// push appends one value copied from src and returns its new slot.
func (c *column) push(src unsafe.Pointer) int {
	c.reserve(1)
	slot := c.length
	c.length++
	if !c.isZST {
		copyBytes(c.at(slot), src, c.typ.Size())
	}
	return slot
}

// pushZero appends a zero value and returns its new slot.
func (c *column) pushZero() int {
	c.reserve(1)
	slot := c.length
	c.length++
	return slot
}

// swapRemove runs the drop hook on slot's value, then moves the last
// element into slot. Reports whether an element was moved into slot (false
// iff slot was already last).
func (c *column) swapRemove(slot int) (moved bool) {
	if slot < 0 || slot >= c.length {
		panic("silo: swapRemove slot out of bounds")
	}
	if c.info.Drop != nil {
		c.info.Drop(c.at(slot))
	}
	last := c.length - 1
	if slot != last {
		if !c.isZST {
			copyBytes(c.at(slot), c.at(last), c.typ.Size())
		}
		moved = true
	}
	c.length--
	return moved
}

// swapRemoveNoDrop behaves like swapRemove but skips the drop hook: used
// when the value at slot has already been byte-copied elsewhere (an
// archetype migration) and ownership has transferred, so running the drop
// hook here would destroy a value that is still live in its new home.
func (c *column) swapRemoveNoDrop(slot int) (moved bool) {
	if slot < 0 || slot >= c.length {
		panic("silo: swapRemoveNoDrop slot out of bounds")
	}
	last := c.length - 1
	if slot != last {
		if !c.isZST {
			copyBytes(c.at(slot), c.at(last), c.typ.Size())
		}
		moved = true
	}
	c.length--
	return moved
}

// append bulk-moves all of other's elements to the tail of c, leaving
// other empty. If c is empty, the backing buffers are swapped instead of
// copied.
func (c *column) append(other *column) {
	if other.length == 0 {
		return
	}
	if c.length == 0 && !c.isZST {
		c.buffer, c.base, c.cap = other.buffer, other.base, other.cap
		c.length = other.length
		other.buffer = reflect.Value{}
		other.base = nil
		other.length, other.cap = 0, 0
		return
	}
	c.reserve(other.length)
	if !c.isZST {
		copyBytes(c.at(c.length), other.at(0), uintptr(other.length)*c.typ.Size())
	}
	c.length += other.length
	other.length = 0
}

// extend copies n typed elements from src, which must not overlap c's
// buffer.
func (c *column) extend(src unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	c.reserve(n)
	if !c.isZST {
		copyBytes(c.at(c.length), src, uintptr(n)*c.typ.Size())
	}
	c.length += n
}

// clear drops every value and resets length to zero; capacity is retained.
func (c *column) clear() {
	if c.info.Drop != nil {
		for i := 0; i < c.length; i++ {
			c.info.Drop(c.at(i))
		}
	}
	c.length = 0
}

func copyBytes(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(dst), size)
	srcSlice := unsafe.Slice((*byte)(src), size)
	copy(dstSlice, srcSlice)
}

// columnGet returns a typed pointer into the column at slot.
func columnGet[T any](c *column, slot int) *T {
	if c.isZST {
		var zero T
		return &zero
	}
	return (*T)(c.at(slot))
}

// columnSlice returns a typed view over every live element in the column.
func columnSlice[T any](c *column) []T {
	if c.isZST {
		return make([]T, c.length)
	}
	if c.length == 0 {
		return nil
	}
	return unsafe.Slice((*T)(c.base), c.length)
}
