package silo

import (
	"context"

	"github.com/TheBitDrifter/mask"
	"golang.org/x/sync/errgroup"
)

// AccessKind distinguishes a system's read access to a component from a
// write access, the unit the Schedule's conflict probe reasons about.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// Access declares one component a System reads or writes.
type Access struct {
	Key  ComponentKey
	Kind AccessKind
}

// System is one unit of scheduled work: a name for diagnostics, the set of
// component accesses it declares up front, and the function to run.
type System struct {
	Name    string
	Reads   []AnyComponent
	Writes  []AnyComponent
	Run     func(ctx context.Context, world *World) error
	mask    mask.Mask256
	wmask   mask.Mask256
	masksOk bool
}

func (s *System) ensureMasks(g *ArchetypeGraph) {
	if s.masksOk {
		return
	}
	for _, c := range s.Reads {
		s.mask.Mark(g.RowIndexFor(c.Key()))
	}
	for _, c := range s.Writes {
		s.mask.Mark(g.RowIndexFor(c.Key()))
		s.wmask.Mark(g.RowIndexFor(c.Key()))
	}
	s.masksOk = true
}

// conflictsWith reports whether s and other cannot run concurrently: true
// if either writes a component the other reads or writes. The coarse mask
// intersection is checked first (spec.md's O(1) probe); on a hit it's
// confirmed against the exact per-component sets the graph may alias
// distinct bits onto the same row beyond mask.Mask256's width.
func (s *System) conflictsWith(other *System) bool {
	if !s.wmask.ContainsAny(other.mask) && !other.wmask.ContainsAny(s.mask) {
		return false
	}
	for _, w := range s.Writes {
		for _, r := range other.Reads {
			if w.Key() == r.Key() {
				return true
			}
		}
		for _, w2 := range other.Writes {
			if w.Key() == w2.Key() {
				return true
			}
		}
	}
	for _, w := range other.Writes {
		for _, r := range s.Reads {
			if w.Key() == r.Key() {
				return true
			}
		}
	}
	return false
}

// Schedule batches a fixed list of systems into conflict-free groups, greedily
// assigning each system to the earliest batch none of whose members it
// conflicts with (spec.md C10). Batches run sequentially; systems within a
// batch may run in parallel since none of them alias a write.
type Schedule struct {
	systems []*System
	batches [][]*System
	built   bool
}

// NewSchedule constructs an empty Schedule. Use Factory.NewSchedule from
// application code.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// Add registers sys with the schedule, invalidating any previously computed
// batching.
func (s *Schedule) Add(sys *System) *Schedule {
	s.systems = append(s.systems, sys)
	s.built = false
	return s
}

// Build computes the greedy conflict-free batching against world's current
// archetype graph (used only to resolve each component to a mask bit; it
// does not depend on which archetypes currently exist).
func (s *Schedule) Build(world *World) {
	for _, sys := range s.systems {
		sys.ensureMasks(world.graph)
	}
	var batches [][]*System
	for _, sys := range s.systems {
		placed := false
		for i, batch := range batches {
			conflict := false
			for _, other := range batch {
				if sys.conflictsWith(other) {
					conflict = true
					break
				}
			}
			if !conflict {
				batches[i] = append(batches[i], sys)
				placed = true
				break
			}
		}
		if !placed {
			batches = append(batches, []*System{sys})
		}
	}
	s.batches = batches
	s.built = true
}

// ExecuteSeq runs every batch, and every system within a batch, sequentially,
// stopping at the first error. It does not lock world and does not flush any
// CommandBuffer between batches.
func (s *Schedule) ExecuteSeq(ctx context.Context, world *World) error {
	if !s.built {
		s.Build(world)
	}
	for _, batch := range s.batches {
		for _, sys := range batch {
			if err := sys.Run(ctx, world); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExecutePar runs each batch's systems concurrently via errgroup, waiting for
// the whole batch before advancing, since the next batch may conflict with
// this one's writes. Config.scheduleWorkers caps how many of a batch's
// systems run at once; zero (the default) leaves errgroup unbounded, one
// goroutine per system in the batch.
func (s *Schedule) ExecutePar(ctx context.Context, world *World) error {
	if !s.built {
		s.Build(world)
	}
	for _, batch := range s.batches {
		g, gctx := errgroup.WithContext(ctx)
		if n := Config.scheduleWorkers; n > 0 {
			g.SetLimit(n)
		}
		for _, sys := range batch {
			sys := sys
			g.Go(func() error {
				return sys.Run(gctx, world)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Batches returns the computed batching, building it first if necessary.
// Exposed mainly for tests asserting on the schedule's conflict analysis.
func (s *Schedule) Batches(world *World) [][]*System {
	if !s.built {
		s.Build(world)
	}
	return s.batches
}

// Command is one deferred structural mutation, queued by a system and
// replayed when its CommandBuffer is flushed.
// Adapted from the teacher's entityOperationsQueue (operation_queue.go):
// same enqueue-while-locked, drain-when-unlocked shape, generalized from
// Storage's fixed operation set to an arbitrary closure over *World.
type Command func(world *World) error

// CommandBuffer queues Commands for replay when Flush is called, so systems
// can request structural changes without applying them immediately.
// Schedule does not flush command buffers itself; the caller calls Flush.
type CommandBuffer struct {
	commands []Command
}

// NewCommandBuffer returns an empty CommandBuffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Enqueue defers cmd until the next Flush.
func (b *CommandBuffer) Enqueue(cmd Command) {
	b.commands = append(b.commands, cmd)
}

// Flush applies every queued command against world in order, then clears
// the buffer. Returns the first error encountered, if any, leaving
// subsequent commands unapplied (matching the teacher's ProcessAll
// short-circuit behavior).
func (b *CommandBuffer) Flush(world *World) error {
	pending := b.commands
	b.commands = nil
	for _, cmd := range pending {
		if err := cmd(world); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many commands are currently queued.
func (b *CommandBuffer) Len() int { return len(b.commands) }
