package silo

import "fmt"

// Slice is a half-open slot range [Start, End) within one archetype column.
type Slice struct {
	Start, End int
}

// NewSlice builds a slice, clamping to empty if end <= start.
func NewSlice(start, end int) Slice {
	if end < start {
		end = start
	}
	return Slice{start, end}
}

// SingleSlice builds the one-slot range covering slot.
func SingleSlice(slot int) Slice {
	return Slice{slot, slot + 1}
}

// IsEmpty reports whether the slice covers no slots.
func (s Slice) IsEmpty() bool { return s.End <= s.Start }

// Len returns the number of slots covered.
func (s Slice) Len() int {
	if s.IsEmpty() {
		return 0
	}
	return s.End - s.Start
}

// Contains reports whether slot falls within the slice.
func (s Slice) Contains(slot int) bool { return slot >= s.Start && slot < s.End }

// Before is a total, position-based order over slices (by start, then end),
// used only to decide where a new entry belongs relative to existing ones —
// it is not an overlap test.
func (s Slice) Before(other Slice) bool {
	if s.Start != other.Start {
		return s.Start < other.Start
	}
	return s.End < other.End
}

// Union merges s and other into one contiguous slice, if and only if they
// overlap or touch (adjacent). Returns ok=false otherwise.
func (s Slice) Union(other Slice) (Slice, bool) {
	if s.End < other.Start || other.End < s.Start {
		return Slice{}, false
	}
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Slice{start, end}, true
}

// Difference returns the part of s not covered by other. When other
// straddles s entirely on one side (left or right), the single contiguous
// remainder is returned. When other sits strictly inside s, splitting it
// into two disjoint remainders, Slice cannot represent both halves; the
// right-hand remainder is kept and the left-hand one is dropped. This is
// exercised by TestChangeListOverwriteAlmostAll.
func (s Slice) Difference(other Slice) (Slice, bool) {
	if other.Start <= s.Start && other.End >= s.End {
		return Slice{}, false
	}
	if other.End <= s.Start || other.Start >= s.End {
		return s, true
	}
	if other.Start <= s.Start {
		return Slice{other.End, s.End}, true
	}
	if other.End >= s.End {
		return Slice{s.Start, other.Start}, true
	}
	return Slice{other.End, s.End}, true
}

// SplitWith splits s around other, returning the remainder left of other
// and the remainder right of other. ok is false if s and other don't
// intersect. Used by ChangeList.Remove, where other is always a
// single-slot slice.
func (s Slice) SplitWith(other Slice) (left, right Slice, ok bool) {
	interStart, interEnd := max(s.Start, other.Start), min(s.End, other.End)
	if interStart >= interEnd {
		return Slice{}, Slice{}, false
	}
	return Slice{s.Start, interStart}, Slice{interEnd, s.End}, true
}

// ChangeKind distinguishes why a slot range was recorded in a ChangeList.
type ChangeKind uint8

const (
	ChangeKindInserted ChangeKind = iota
	ChangeKindModified
	ChangeKindRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeKindInserted:
		return "inserted"
	case ChangeKindModified:
		return "modified"
	case ChangeKindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Change records that a slot range changed at a given world tick.
type Change struct {
	Slice Slice
	Tick  uint64
	Kind  ChangeKind
}

func (c Change) String() string {
	return fmt.Sprintf("%v@%d[%d,%d)", c.Kind, c.Tick, c.Slice.Start, c.Slice.End)
}

// ChangeList is a self-compacting, ordered, disjoint sequence of Change
// records for one column. Ported in semantics from age-rs/flax's
// archetype/changes.rs (see original_source/src/archetype/changes.rs):
// insertion merges a change into a same-tick entry that lies to its left
// and touches or overlaps it, and lets a strictly newer tick clip an older
// overlapping entry.
type ChangeList struct {
	entries []Change
}

// Len returns the number of distinct change records.
func (cl *ChangeList) Len() int { return len(cl.entries) }

// IsEmpty reports whether the list holds no records.
func (cl *ChangeList) IsEmpty() bool { return len(cl.entries) == 0 }

// At returns the i'th record in ascending order.
func (cl *ChangeList) At(i int) Change { return cl.entries[i] }

// All returns every record in ascending order. The returned slice aliases
// internal state and must not be mutated by the caller.
func (cl *ChangeList) All() []Change { return cl.entries }

// Set inserts change, preserving the sorted-disjoint-coalesced invariant.
//
// For each existing entry v: if v is strictly older it is clipped to the
// part not covered by change (newer wins); otherwise change is clipped to
// the part not covered by v (older or equal wins). If v has the same tick,
// lies to the left of change and touches or overlaps it, change merges into
// v; this happens for at most one entry, and a same-tick entry to the right
// of change is not merged.
func (cl *ChangeList) Set(change Change) {
	if change.Slice.IsEmpty() {
		return
	}

	out := cl.entries[:0]
	joined := false
	insertPoint := 0

	for _, v := range cl.entries {
		if change.Slice.IsEmpty() {
			out = append(out, v)
			continue
		}

		if v.Tick < change.Tick {
			if diff, ok := v.Slice.Difference(change.Slice); ok {
				v.Slice = diff
			} else {
				v.Slice = Slice{}
			}
		} else if diff, ok := change.Slice.Difference(v.Slice); ok {
			change.Slice = diff
		} else {
			change.Slice = Slice{}
		}

		if !joined && v.Tick == change.Tick && v.Slice.Before(change.Slice) {
			if u, ok := v.Slice.Union(change.Slice); ok {
				joined = true
				v.Slice = u
			}
		}

		if v.Slice.IsEmpty() {
			continue
		}

		out = append(out, v)
		if v.Slice.Before(change.Slice) {
			insertPoint = len(out)
		}
	}
	cl.entries = out

	if !joined && !change.Slice.IsEmpty() {
		cl.entries = append(cl.entries, Change{})
		copy(cl.entries[insertPoint+1:], cl.entries[insertPoint:])
		cl.entries[insertPoint] = change
	}
}

// Remove excises slot from every entry that covers it, splitting that
// entry's surviving remainder(s) back into the list, and returns the
// point-change(s) that used to cover slot (there is at most one, since
// entries are disjoint, but the signature mirrors the migrate/swap-out
// callers which expect a slice).
func (cl *ChangeList) Remove(slot int) []Change {
	target := SingleSlice(slot)

	var result, right, removed []Change
	for _, v := range cl.entries {
		if left, rightRem, ok := v.Slice.SplitWith(target); ok {
			if !left.IsEmpty() {
				if len(right) > 0 && right[0].Slice.Before(left) {
					result = append(result, right...)
					right = right[:0]
				}
				result = append(result, Change{left, v.Tick, v.Kind})
			}
			if !rightRem.IsEmpty() {
				right = append(right, Change{rightRem, v.Tick, v.Kind})
			}
			removed = append(removed, Change{target, v.Tick, v.Kind})
		} else {
			if len(right) > 0 && right[0].Slice.Before(v.Slice) {
				result = append(result, right...)
				right = right[:0]
			}
			result = append(result, v)
		}
	}
	result = append(result, right...)
	cl.entries = result
	return removed
}

// MigrateTo moves the change records covering src into other, rewritten to
// cover dst. Used when an entity migrates to a different archetype slot.
func (cl *ChangeList) MigrateTo(other *ChangeList, src, dst int) {
	for _, r := range cl.Remove(src) {
		r.Slice = SingleSlice(dst)
		other.Set(r)
	}
}

// SwapOut handles the bookkeeping for a swap-remove: dst's records (dst
// being the element about to be moved into src's position) are removed and
// rewritten to cover src, and src's original records are returned so the
// caller can apply them to whatever they're migrating to (or drop them, if
// src is simply vacated).
func (cl *ChangeList) SwapOut(src, dst int) []Change {
	srcChanges := cl.Remove(src)
	dstChanges := cl.Remove(dst)
	for _, v := range dstChanges {
		v.Slice = SingleSlice(src)
		cl.Set(v)
	}
	return srcChanges
}

// Changes bundles the three ChangeLists (Inserted, Modified, Removed)
// tracked for one archetype column, plus the ComponentInfo it describes.
type Changes struct {
	info ComponentInfo

	inserted ChangeList
	modified ChangeList
	removed  ChangeList
}

func newChanges(info ComponentInfo) *Changes {
	return &Changes{info: info}
}

// ByKind returns the ChangeList for the given kind.
func (c *Changes) ByKind(kind ChangeKind) *ChangeList {
	switch kind {
	case ChangeKindInserted:
		return &c.inserted
	case ChangeKindModified:
		return &c.modified
	case ChangeKindRemoved:
		return &c.removed
	default:
		panic("silo: unknown change kind")
	}
}

func (c *Changes) SetInserted(ch Change) { c.inserted.Set(ch) }
func (c *Changes) SetModified(ch Change) { c.modified.Set(ch) }
func (c *Changes) SetRemoved(ch Change)  { c.removed.Set(ch) }

func (c *Changes) Inserted() *ChangeList { return &c.inserted }
func (c *Changes) Modified() *ChangeList { return &c.modified }
func (c *Changes) Removed() *ChangeList  { return &c.removed }

// MigrateTo moves every change record at src to dst in other, across all
// three change kinds.
func (c *Changes) MigrateTo(other *Changes, src, dst int) {
	c.inserted.MigrateTo(&other.inserted, src, dst)
	c.modified.MigrateTo(&other.modified, src, dst)
	c.removed.MigrateTo(&other.removed, src, dst)
}

// SwapOut applies SwapOut across all three change kinds, for the
// swap-remove that happens when an entity is despawned or migrated out of
// the middle of an archetype.
func (c *Changes) SwapOut(src, dst int) {
	c.inserted.SwapOut(src, dst)
	c.modified.SwapOut(src, dst)
	c.removed.SwapOut(src, dst)
}

// RemoveSlot drops slot's records from all three change kinds, e.g. when
// an entity at the archetype's last slot is despawned outright.
func (c *Changes) RemoveSlot(slot int) {
	c.inserted.Remove(slot)
	c.modified.Remove(slot)
	c.removed.Remove(slot)
}
