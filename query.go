package silo

import (
	"iter"
	"sync"
)

// acquireBorrow takes the appropriate borrow kind on cell and returns its
// release function. cell may be nil (an absent Optional column), in which
// case it is a no-op.
func acquireBorrow(cell *Cell, mutable bool) func() {
	if cell == nil {
		return func() {}
	}
	var release func()
	var err error
	if mutable {
		release, err = cell.BorrowWrite()
	} else {
		release, err = cell.BorrowRead()
	}
	if err != nil {
		return func() {}
	}
	return release
}

// Query2 is a cached, filtered view over the archetype graph fetching two
// component values per matched entity (spec.md §4.9, C9). Build one with
// NewQuery2 and reuse it across frames; Borrow rebuilds its archetype
// cache only when the world's archetype generation has advanced since the
// last borrow.
type Query2[A, B any] struct {
	mu      sync.Mutex
	fa      fetchSpec[*A]
	fb      fetchSpec[*B]
	filters []Filter

	cachedWorld *World
	cachedGen   uint64
	cachedArchs []*archetype
}

// NewQuery2 builds a two-component query from a pair of fetch specs (Read,
// Mutable, Opt, MaybeMut) and any number of filters.
func NewQuery2[A, B any](fa fetchSpec[*A], fb fetchSpec[*B], filters ...Filter) *Query2[A, B] {
	return &Query2[A, B]{fa: fa, fb: fb, filters: filters}
}

func (q *Query2[A, B]) staticKeys() []ComponentKey {
	var out []ComponentKey
	if !q.fa.isOptional() {
		out = append(out, q.fa.key())
	}
	if !q.fb.isOptional() {
		out = append(out, q.fb.key())
	}
	return out
}

func (q *Query2[A, B]) matches(a *archetype) bool {
	for _, f := range q.filters {
		if !f.MatchesArchetype(a) {
			return false
		}
	}
	return true
}

// Borrow binds the query to world for one iteration pass, refreshing the
// cached archetype list first if world's shape changed since the last
// borrow.
func (q *Query2[A, B]) Borrow(world *World) *QueryBorrow2[A, B] {
	q.mu.Lock()
	defer q.mu.Unlock()

	required := requiredMaskOf(world.graph, q.staticKeys())
	archs, gen := world.snapshotArchetypes(required)

	if q.cachedWorld != world || q.cachedGen != gen {
		matched := make([]*archetype, 0, len(archs))
		for _, a := range archs {
			if q.matches(a) {
				matched = append(matched, a)
			}
		}
		q.cachedArchs = matched
		q.cachedGen = gen
		q.cachedWorld = world
	}

	return &QueryBorrow2[A, B]{
		query:      q,
		world:      world,
		archetypes: q.cachedArchs,
		tick:       world.ChangeTick(),
	}
}

// QueryBorrow2 is one borrow pass of a Query2 against a specific World.
type QueryBorrow2[A, B any] struct {
	query      *Query2[A, B]
	world      *World
	archetypes []*archetype
	tick       uint64
	sinceTick  uint64
}

// Since restricts dynamic filters (Modified/Inserted/Removed) to changes
// strictly after tick, instead of the query's default of 0 ("ever").
// Systems typically pass the tick observed on their previous run.
func (b *QueryBorrow2[A, B]) Since(tick uint64) *QueryBorrow2[A, B] {
	b.sinceTick = tick
	return b
}

// Release is a no-op: chunk-spanning cell borrows are acquired and
// released per archetype during iteration, not held for the life of the
// QueryBorrow. It exists so callers can defer borrow.Release() uniformly.
func (b *QueryBorrow2[A, B]) Release() {}

// IterBatched iterates every matched archetype's live rows in
// archetype-sized batches (spec.md's planar strategy, C9).
func (b *QueryBorrow2[A, B]) IterBatched() iter.Seq[Chunk2[A, B]] {
	return func(yield func(Chunk2[A, B]) bool) {
		for _, a := range b.archetypes {
			if a.IsEmpty() {
				continue
			}
			cellA, okA := b.query.fa.lookup(a)
			cellB, okB := b.query.fb.lookup(a)
			if !okA || !okB {
				continue
			}

			releaseA := acquireBorrow(cellA, b.query.fa.isMutable())
			releaseB := acquireBorrow(cellB, b.query.fb.isMutable())

			chunk := Chunk2[A, B]{
				a: a, slots: NewSlice(0, a.Len()),
				cellA: cellA, cellB: cellB,
				fa: b.query.fa, fb: b.query.fb,
				tick: b.tick, filters: b.query.filters, sinceTick: b.sinceTick,
			}
			cont := yield(chunk)

			releaseA()
			releaseB()
			if !cont {
				return
			}
		}
	}
}

// Iter iterates one entity at a time across every matched chunk.
func (b *QueryBorrow2[A, B]) Iter() func(yield func(Entity, *A, *B) bool) {
	return func(yield func(Entity, *A, *B) bool) {
		for chunk := range b.IterBatched() {
			cont := true
			chunk.EachEntity(func(e Entity, a *A, bb *B) bool {
				cont = yield(e, a, bb)
				return cont
			})
			if !cont {
				return
			}
		}
	}
}

// First returns the first matching entity, if any.
func (b *QueryBorrow2[A, B]) First() (e Entity, a *A, bb *B, ok bool) {
	for e, a, bb := range b.Iter() {
		return e, a, bb, true
	}
	return 0, nil, nil, false
}

// Get performs random access: it returns e's fetched values if e is alive,
// in an archetype this query matches, and passes the query's dynamic
// filters; otherwise it returns the error describing why not.
func (b *QueryBorrow2[A, B]) Get(e Entity) (*A, *B, error) {
	w := b.world
	w.mu.Lock()
	slot, ok := w.entities.Get(e)
	if !ok {
		w.mu.Unlock()
		return nil, nil, NotAliveError{ID: e}
	}
	a := w.graph.Archetype(slot.archetype)
	w.mu.Unlock()

	matched := false
	for _, m := range b.archetypes {
		if m == a {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil, DoesNotMatchError{ID: e}
	}
	for _, f := range b.query.filters {
		if !f.MatchesSlot(a, slot.row, b.sinceTick) {
			return nil, nil, FilteredError{ID: e}
		}
	}
	cellA, _ := b.query.fa.lookup(a)
	cellB, _ := b.query.fb.lookup(a)
	return b.query.fa.fetchAt(cellA, slot.row, b.tick), b.query.fb.fetchAt(cellB, slot.row, b.tick), nil
}

// Chunk2 is one archetype's worth of matched rows from a QueryBorrow2.
type Chunk2[A, B any] struct {
	a     *archetype
	slots Slice

	cellA, cellB *Cell
	fa           fetchSpec[*A]
	fb           fetchSpec[*B]

	tick      uint64
	filters   []Filter
	sinceTick uint64
}

// Len returns the number of rows in this chunk before dynamic filtering.
func (c Chunk2[A, B]) Len() int { return c.slots.Len() }

// Entity returns the entity at slot i (0-based within the chunk).
func (c Chunk2[A, B]) Entity(i int) Entity { return c.a.EntityAt(c.slots.Start + i) }

func (c Chunk2[A, B]) eachSlot(fn func(slot int) bool) {
	for slot := c.slots.Start; slot < c.slots.End; slot++ {
		skip := false
		for _, f := range c.filters {
			if !f.MatchesSlot(c.a, slot, c.sinceTick) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if !fn(slot) {
			return
		}
	}
}

// Items iterates the chunk's (filtered) fetched value pairs.
func (c Chunk2[A, B]) Items() iter.Seq2[*A, *B] {
	return func(yield func(*A, *B) bool) {
		c.eachSlot(func(slot int) bool {
			return yield(c.fa.fetchAt(c.cellA, slot, c.tick), c.fb.fetchAt(c.cellB, slot, c.tick))
		})
	}
}

// EachEntity iterates the chunk's (filtered) rows along with their entity.
func (c Chunk2[A, B]) EachEntity(fn func(Entity, *A, *B) bool) {
	c.eachSlot(func(slot int) bool {
		return fn(c.a.EntityAt(slot), c.fa.fetchAt(c.cellA, slot, c.tick), c.fb.fetchAt(c.cellB, slot, c.tick))
	})
}
