package silo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func isSortedDisjoint(t *testing.T, entries []Change) {
	t.Helper()
	for i := 1; i < len(entries); i++ {
		require.True(t, entries[i-1].Slice.Before(entries[i].Slice), "entries out of order at %d: %+v", i, entries)
		require.LessOrEqual(t, entries[i-1].Slice.End, entries[i].Slice.Start, "entries overlap at %d: %+v", i, entries)
	}
}

func TestChangeListStaysSortedAndDisjoint(t *testing.T) {
	var cl ChangeList
	cl.Set(Change{NewSlice(0, 5), 1, ChangeKindModified})
	cl.Set(Change{NewSlice(10, 15), 1, ChangeKindModified})
	cl.Set(Change{NewSlice(3, 12), 2, ChangeKindModified})

	isSortedDisjoint(t, cl.All())
}

func TestChangeListCoversEverySlotOfANewerChange(t *testing.T) {
	var cl ChangeList
	cl.Set(Change{NewSlice(0, 10), 1, ChangeKindModified})
	cl.Set(Change{NewSlice(2, 4), 5, ChangeKindModified})

	for slot := 2; slot < 4; slot++ {
		require.True(t, sliceCovers(cl.All(), slot, 5), "slot %d should be covered by tick >= 5", slot)
	}
}

// sliceCovers reports whether any entry in entries contains slot with Tick
// >= minTick.
func sliceCovers(entries []Change, slot int, minTick uint64) bool {
	for _, e := range entries {
		if e.Slice.Contains(slot) && e.Tick >= minTick {
			return true
		}
	}
	return false
}

func TestChangeListOverwriteAlmostAll(t *testing.T) {
	var cl ChangeList
	cl.Set(Change{NewSlice(0, 10), 1, ChangeKindModified})
	// A strictly newer change straddling the middle of the existing entry
	// can only leave one contiguous remainder per this type's documented
	// "right-hand remainder kept" policy (see changelist.go Slice.Difference).
	cl.Set(Change{NewSlice(3, 6), 2, ChangeKindModified})

	isSortedDisjoint(t, cl.All())
	require.True(t, sliceCovers(cl.All(), 3, 2))
	require.True(t, sliceCovers(cl.All(), 5, 2))
}

func TestChangeListSameTickAdjacentSlicesMerge(t *testing.T) {
	var cl ChangeList
	cl.Set(Change{NewSlice(0, 5), 1, ChangeKindModified})
	cl.Set(Change{NewSlice(5, 10), 1, ChangeKindModified})

	require.Equal(t, 1, cl.Len(), "adjacent same-tick entries should coalesce")
	require.Equal(t, NewSlice(0, 10), cl.At(0).Slice)
}

func TestChangeListRemoveThenMigrateIsIDPreserving(t *testing.T) {
	var src, dst ChangeList
	src.Set(Change{NewSlice(0, 5), 1, ChangeKindModified})

	src.MigrateTo(&dst, 2, 7)

	require.False(t, sliceCovers(src.All(), 2, 0), "src should no longer cover the migrated slot")
	require.True(t, sliceCovers(dst.All(), 7, 1), "dst should cover the new slot at the migrated tick")
}

func TestChangeListSwapOutMovesLastSlotRecords(t *testing.T) {
	var cl ChangeList
	cl.Set(Change{NewSlice(0, 1), 1, ChangeKindModified})
	cl.Set(Change{NewSlice(4, 5), 2, ChangeKindModified})

	cl.SwapOut(0, 4)

	require.True(t, sliceCovers(cl.All(), 0, 2), "slot 0 should now carry what used to be slot 4's record")
}
