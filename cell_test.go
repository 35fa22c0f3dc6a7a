package silo

import (
	"reflect"
	"testing"
	"unsafe"
)

func newTestCell(t *testing.T) *Cell {
	t.Helper()
	info := ComponentInfo{Name: "testPosition", Type: reflect.TypeOf(testPosition{})}
	return newCell(info, reflect.TypeOf(testPosition{}))
}

func TestCellBorrowReadAllowsMultipleConcurrentReaders(t *testing.T) {
	Config.SetPanicOnBorrowConflict(false)
	defer Config.SetPanicOnBorrowConflict(true)

	c := newTestCell(t)
	release1, err := c.BorrowRead()
	if err != nil {
		t.Fatalf("first BorrowRead: %v", err)
	}
	release2, err := c.BorrowRead()
	if err != nil {
		t.Fatalf("second concurrent BorrowRead should succeed: %v", err)
	}
	release1()
	release2()
}

func TestCellBorrowWriteConflictsWithExistingReader(t *testing.T) {
	Config.SetPanicOnBorrowConflict(false)
	defer Config.SetPanicOnBorrowConflict(true)

	c := newTestCell(t)
	releaseRead, err := c.BorrowRead()
	if err != nil {
		t.Fatalf("BorrowRead: %v", err)
	}
	defer releaseRead()

	_, err = c.BorrowWrite()
	if err == nil {
		t.Fatalf("expected BorrowWrite to conflict with an outstanding reader")
	}
	if _, ok := err.(BorrowConflictError); !ok {
		t.Fatalf("expected BorrowConflictError, got %T", err)
	}
}

func TestCellBorrowWriteConflictsWithExistingWriter(t *testing.T) {
	Config.SetPanicOnBorrowConflict(false)
	defer Config.SetPanicOnBorrowConflict(true)

	c := newTestCell(t)
	releaseWrite, err := c.BorrowWrite()
	if err != nil {
		t.Fatalf("BorrowWrite: %v", err)
	}
	defer releaseWrite()

	if _, err := c.BorrowRead(); err == nil {
		t.Fatalf("expected BorrowRead to conflict with an outstanding writer")
	}
	if _, err := c.BorrowWrite(); err == nil {
		t.Fatalf("expected BorrowWrite to conflict with an outstanding writer")
	}
}

func TestCellBorrowConflictPanicsByDefault(t *testing.T) {
	c := newTestCell(t)
	release, err := c.BorrowWrite()
	if err != nil {
		t.Fatalf("BorrowWrite: %v", err)
	}
	defer release()

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected BorrowRead to panic while Config.panicOnBorrow is true")
		}
	}()
	c.BorrowRead()
}

func TestCellBorrowReadAfterReleaseSucceeds(t *testing.T) {
	Config.SetPanicOnBorrowConflict(false)
	defer Config.SetPanicOnBorrowConflict(true)

	c := newTestCell(t)
	release, err := c.BorrowWrite()
	if err != nil {
		t.Fatalf("BorrowWrite: %v", err)
	}
	release()

	if _, err := c.BorrowRead(); err != nil {
		t.Fatalf("expected BorrowRead to succeed once the writer released: %v", err)
	}
}

func TestCellPushZeroRecordsInsertedAndGrowsLen(t *testing.T) {
	c := newTestCell(t)
	slot := c.PushZero(1)
	if slot != 0 {
		t.Fatalf("expected first slot to be 0, got %d", slot)
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len 1, got %d", c.Len())
	}

	entries := c.Changes().ByKind(ChangeKindInserted).All()
	if !sliceCovers(entries, 0, 1) {
		t.Fatalf("expected an Inserted record covering slot 0 at tick 1, got %+v", entries)
	}
}

func TestCellPushFromMigratesChangeHistory(t *testing.T) {
	src := newTestCell(t)
	srcSlot := src.PushZero(1)
	src.SetValue(srcSlot, reflect.ValueOf(testPosition{X: 9, Y: 2}), 3)

	dst := newTestCell(t)
	dstSlot := dst.PushFrom(src, srcSlot)

	got := CellSlice[testPosition](dst)
	if got[dstSlot].X != 9 || got[dstSlot].Y != 2 {
		t.Fatalf("expected value copied into dst, got %+v", got[dstSlot])
	}

	dstEntries := dst.Changes().ByKind(ChangeKindModified).All()
	if !sliceCovers(dstEntries, dstSlot, 3) {
		t.Fatalf("expected dst's change history to carry the migrated Modified record, got %+v", dstEntries)
	}
}

func TestCellSwapRemoveReportsMovedAndShrinksLen(t *testing.T) {
	c := newTestCell(t)
	c.PushZero(1)
	second := c.PushZero(1)
	c.SetValue(second, reflect.ValueOf(testPosition{X: 5}), 1)

	moved := c.SwapRemove(0, 2)
	if !moved {
		t.Fatalf("expected removing slot 0 of a 2-element cell to move the last element")
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len 1 after SwapRemove, got %d", c.Len())
	}
	got := CellSlice[testPosition](c)
	if got[0].X != 5 {
		t.Fatalf("expected last element's value moved into slot 0, got %+v", got[0])
	}
}

func TestCellSwapRemoveLastSlotReportsNotMoved(t *testing.T) {
	c := newTestCell(t)
	c.PushZero(1)

	moved := c.SwapRemove(0, 2)
	if moved {
		t.Fatalf("expected removing the only slot to report moved=false")
	}
	if c.Len() != 0 {
		t.Fatalf("expected Len 0, got %d", c.Len())
	}
}

func TestCellSwapRemoveNoDropSkipsDropHook(t *testing.T) {
	// Checks that the drop hook does not run, plus the slot bookkeeping
	// contract SwapRemoveNoDrop shares with SwapRemove.
	c := newTestCell(t)
	drops := 0
	c.col.info.Drop = func(unsafe.Pointer) { drops++ }
	c.PushZero(1)
	second := c.PushZero(1)
	c.SetValue(second, reflect.ValueOf(testPosition{X: 11}), 1)

	moved := c.SwapRemoveNoDrop(0, 2)
	if !moved {
		t.Fatalf("expected move from last slot")
	}
	got := CellSlice[testPosition](c)
	if got[0].X != 11 {
		t.Fatalf("expected relocated value, got %+v", got[0])
	}
	if drops != 0 {
		t.Fatalf("expected SwapRemoveNoDrop not to run the drop hook, ran %d times", drops)
	}
}

func TestCellClearDropsAllValuesAndResetsChanges(t *testing.T) {
	c := newTestCell(t)
	c.PushZero(1)
	c.PushZero(1)

	c.Clear()

	if c.Len() != 0 {
		t.Fatalf("expected Len 0 after Clear, got %d", c.Len())
	}
	if c.Changes().Inserted().Len() != 0 {
		t.Fatalf("expected change history reset after Clear, got %d inserted entries", c.Changes().Inserted().Len())
	}
}

func TestCellGetAndGetMutRoundTripValues(t *testing.T) {
	Config.SetPanicOnBorrowConflict(false)
	defer Config.SetPanicOnBorrowConflict(true)

	c := newTestCell(t)
	slot := c.PushZero(1)

	ptr, release := CellGetMut[testPosition](c, slot, 2)
	ptr.X, ptr.Y = 1, 2
	release()

	readPtr, release2 := CellGet[testPosition](c, slot)
	defer release2()
	if readPtr.X != 1 || readPtr.Y != 2 {
		t.Fatalf("expected CellGet to observe CellGetMut's write, got %+v", *readPtr)
	}

	entries := c.Changes().ByKind(ChangeKindModified).All()
	if !sliceCovers(entries, slot, 2) {
		t.Fatalf("expected CellGetMut to record a Modified change, got %+v", entries)
	}
}

func TestCellSliceReflectsLiveSlotsOnly(t *testing.T) {
	c := newTestCell(t)
	c.PushZero(1)
	c.PushZero(1)
	c.SwapRemove(0, 2)

	got := CellSlice[testPosition](c)
	if len(got) != 1 {
		t.Fatalf("expected 1 live slot after SwapRemove, got %d", len(got))
	}
}
