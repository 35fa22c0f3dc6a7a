package silo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScheduleBatchesConflictFreeSystemsTogether(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()
	velocity := FactoryNewComponent[testVelocity]()
	health := FactoryNewComponent[testHealth]()

	readPos := &System{Name: "readPos", Reads: []AnyComponent{position}, Run: noopSystem}
	readVel := &System{Name: "readVel", Reads: []AnyComponent{velocity}, Run: noopSystem}
	writePos := &System{Name: "writePos", Writes: []AnyComponent{position}, Run: noopSystem}
	unrelated := &System{Name: "health", Writes: []AnyComponent{health}, Run: noopSystem}

	sched := NewSchedule().Add(readPos).Add(readVel).Add(writePos).Add(unrelated)
	batches := sched.Batches(w)

	require.Len(t, batches, 2, "writePos must land in a later batch than readPos")

	first := batches[0]
	require.Contains(t, first, readPos)
	require.Contains(t, first, readVel)
	require.Contains(t, first, unrelated)

	require.Contains(t, batches[1], writePos)
}

func noopSystem(ctx context.Context, world *World) error { return nil }

func TestScheduleExecuteSeqRunsEverySystem(t *testing.T) {
	w := newWorld()
	var order []string
	a := &System{Name: "a", Run: func(ctx context.Context, world *World) error {
		order = append(order, "a")
		return nil
	}}
	b := &System{Name: "b", Run: func(ctx context.Context, world *World) error {
		order = append(order, "b")
		return nil
	}}

	sched := NewSchedule().Add(a).Add(b)
	require.NoError(t, sched.ExecuteSeq(context.Background(), w))
	require.ElementsMatch(t, []string{"a", "b"}, order)
}

func TestScheduleExecuteParPropagatesFirstError(t *testing.T) {
	w := newWorld()
	boom := errTest("boom")
	sys := &System{Name: "failing", Run: func(ctx context.Context, world *World) error {
		return boom
	}}
	sched := NewSchedule().Add(sys)
	err := sched.ExecutePar(context.Background(), w)
	require.ErrorIs(t, err, boom)
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestCommandBufferFlushAppliesInOrderThenClears(t *testing.T) {
	w := newWorld()
	position := FactoryNewComponent[testPosition]()

	buf := NewCommandBuffer()
	var spawned Entity
	buf.Enqueue(func(world *World) error {
		id, err := world.Spawn()
		if err != nil {
			return err
		}
		spawned = id
		return world.Set(id, position, testPosition{X: 3})
	})
	require.Equal(t, 1, buf.Len())

	require.NoError(t, buf.Flush(w))
	require.Equal(t, 0, buf.Len())

	got, err := GetTyped(w, spawned, position)
	require.NoError(t, err)
	require.Equal(t, 3.0, got.X)
}
