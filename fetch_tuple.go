package silo

import "iter"

// Query3 and Query4 repeat Query2's pattern for three and four component
// fetches. Grounded in delaneyj-arche's ecs/generic.go Add2/Add3/Add4/Add5
// functions, the established idiom in this corpus for simulating variadic
// generics: Go cannot express "NewQuery[T...]" directly, so each arity
// gets its own named constructor instead.

// Query3 fetches three component values per matched entity.
type Query3[A, B, C any] struct {
	fa      fetchSpec[*A]
	fb      fetchSpec[*B]
	fc      fetchSpec[*C]
	filters []Filter

	cachedWorld *World
	cachedGen   uint64
	cachedArchs []*archetype
}

// NewQuery3 builds a three-component query.
func NewQuery3[A, B, C any](fa fetchSpec[*A], fb fetchSpec[*B], fc fetchSpec[*C], filters ...Filter) *Query3[A, B, C] {
	return &Query3[A, B, C]{fa: fa, fb: fb, fc: fc, filters: filters}
}

func (q *Query3[A, B, C]) staticKeys() []ComponentKey {
	var out []ComponentKey
	if !q.fa.isOptional() {
		out = append(out, q.fa.key())
	}
	if !q.fb.isOptional() {
		out = append(out, q.fb.key())
	}
	if !q.fc.isOptional() {
		out = append(out, q.fc.key())
	}
	return out
}

func (q *Query3[A, B, C]) matches(a *archetype) bool {
	for _, f := range q.filters {
		if !f.MatchesArchetype(a) {
			return false
		}
	}
	return true
}

// Borrow binds the query to world for one iteration pass.
func (q *Query3[A, B, C]) Borrow(world *World) *QueryBorrow3[A, B, C] {
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

	return &QueryBorrow3[A, B, C]{query: q, world: world, archetypes: q.cachedArchs, tick: world.ChangeTick()}
}

// QueryBorrow3 is one borrow pass of a Query3.
type QueryBorrow3[A, B, C any] struct {
	query      *Query3[A, B, C]
	world      *World
	archetypes []*archetype
	tick       uint64
	sinceTick  uint64
}

func (b *QueryBorrow3[A, B, C]) Since(tick uint64) *QueryBorrow3[A, B, C] {
	b.sinceTick = tick
	return b
}

func (b *QueryBorrow3[A, B, C]) Release() {}

// IterBatched iterates every matched archetype's live rows in batches.
func (b *QueryBorrow3[A, B, C]) IterBatched() iter.Seq[Chunk3[A, B, C]] {
	return func(yield func(Chunk3[A, B, C]) bool) {
		for _, a := range b.archetypes {
			if a.IsEmpty() {
				continue
			}
			cellA, okA := b.query.fa.lookup(a)
			cellB, okB := b.query.fb.lookup(a)
			cellC, okC := b.query.fc.lookup(a)
			if !okA || !okB || !okC {
				continue
			}

			releaseA := acquireBorrow(cellA, b.query.fa.isMutable())
			releaseB := acquireBorrow(cellB, b.query.fb.isMutable())
			releaseC := acquireBorrow(cellC, b.query.fc.isMutable())

			chunk := Chunk3[A, B, C]{
				a: a, slots: NewSlice(0, a.Len()),
				cellA: cellA, cellB: cellB, cellC: cellC,
				fa: b.query.fa, fb: b.query.fb, fc: b.query.fc,
				tick: b.tick, filters: b.query.filters, sinceTick: b.sinceTick,
			}
			cont := yield(chunk)

			releaseA()
			releaseB()
			releaseC()
			if !cont {
				return
			}
		}
	}
}

// Iter iterates one entity at a time across every matched chunk.
func (b *QueryBorrow3[A, B, C]) Iter() func(yield func(Entity, *A, *B, *C) bool) {
	return func(yield func(Entity, *A, *B, *C) bool) {
		for chunk := range b.IterBatched() {
			cont := true
			chunk.EachEntity(func(e Entity, a *A, bb *B, c *C) bool {
				cont = yield(e, a, bb, c)
				return cont
			})
			if !cont {
				return
			}
		}
	}
}

// First returns the first matching entity, if any.
func (b *QueryBorrow3[A, B, C]) First() (e Entity, a *A, bb *B, c *C, ok bool) {
	for e, a, bb, c := range b.Iter() {
		return e, a, bb, c, true
	}
	return 0, nil, nil, nil, false
}

// Chunk3 is one archetype's worth of matched rows from a QueryBorrow3.
type Chunk3[A, B, C any] struct {
	a     *archetype
	slots Slice

	cellA, cellB, cellC *Cell
	fa                  fetchSpec[*A]
	fb                  fetchSpec[*B]
	fc                  fetchSpec[*C]

	tick      uint64
	filters   []Filter
	sinceTick uint64
}

func (c Chunk3[A, B, C]) Len() int         { return c.slots.Len() }
func (c Chunk3[A, B, C]) Entity(i int) Entity { return c.a.EntityAt(c.slots.Start + i) }

func (c Chunk3[A, B, C]) eachSlot(fn func(slot int) bool) {
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

// Items returns a three-value iterator function over the chunk; Go's
// iter.Seq2 tops out at two values, so arities above two use a
// hand-written func(yield func(...) bool) shape instead.
func (c Chunk3[A, B, C]) Items() func(yield func(*A, *B, *C) bool) {
	return func(yield func(*A, *B, *C) bool) {
		c.eachSlot(func(slot int) bool {
			return yield(c.fa.fetchAt(c.cellA, slot, c.tick), c.fb.fetchAt(c.cellB, slot, c.tick), c.fc.fetchAt(c.cellC, slot, c.tick))
		})
	}
}

func (c Chunk3[A, B, C]) EachEntity(fn func(Entity, *A, *B, *C) bool) {
	c.eachSlot(func(slot int) bool {
		return fn(c.a.EntityAt(slot), c.fa.fetchAt(c.cellA, slot, c.tick), c.fb.fetchAt(c.cellB, slot, c.tick), c.fc.fetchAt(c.cellC, slot, c.tick))
	})
}

// Query4 fetches four component values per matched entity.
type Query4[A, B, C, D any] struct {
	fa      fetchSpec[*A]
	fb      fetchSpec[*B]
	fc      fetchSpec[*C]
	fd      fetchSpec[*D]
	filters []Filter

	cachedWorld *World
	cachedGen   uint64
	cachedArchs []*archetype
}

// NewQuery4 builds a four-component query.
func NewQuery4[A, B, C, D any](fa fetchSpec[*A], fb fetchSpec[*B], fc fetchSpec[*C], fd fetchSpec[*D], filters ...Filter) *Query4[A, B, C, D] {
	return &Query4[A, B, C, D]{fa: fa, fb: fb, fc: fc, fd: fd, filters: filters}
}

func (q *Query4[A, B, C, D]) staticKeys() []ComponentKey {
	var out []ComponentKey
	if !q.fa.isOptional() {
		out = append(out, q.fa.key())
	}
	if !q.fb.isOptional() {
		out = append(out, q.fb.key())
	}
	if !q.fc.isOptional() {
		out = append(out, q.fc.key())
	}
	if !q.fd.isOptional() {
		out = append(out, q.fd.key())
	}
	return out
}

func (q *Query4[A, B, C, D]) matches(a *archetype) bool {
	for _, f := range q.filters {
		if !f.MatchesArchetype(a) {
			return false
		}
	}
	return true
}

// Borrow binds the query to world for one iteration pass.
func (q *Query4[A, B, C, D]) Borrow(world *World) *QueryBorrow4[A, B, C, D] {
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

	return &QueryBorrow4[A, B, C, D]{query: q, world: world, archetypes: q.cachedArchs, tick: world.ChangeTick()}
}

// QueryBorrow4 is one borrow pass of a Query4.
type QueryBorrow4[A, B, C, D any] struct {
	query      *Query4[A, B, C, D]
	world      *World
	archetypes []*archetype
	tick       uint64
	sinceTick  uint64
}

func (b *QueryBorrow4[A, B, C, D]) Since(tick uint64) *QueryBorrow4[A, B, C, D] {
	b.sinceTick = tick
	return b
}

func (b *QueryBorrow4[A, B, C, D]) Release() {}

// IterBatched iterates every matched archetype's live rows in batches.
func (b *QueryBorrow4[A, B, C, D]) IterBatched() iter.Seq[Chunk4[A, B, C, D]] {
	return func(yield func(Chunk4[A, B, C, D]) bool) {
		for _, a := range b.archetypes {
			if a.IsEmpty() {
				continue
			}
			cellA, okA := b.query.fa.lookup(a)
			cellB, okB := b.query.fb.lookup(a)
			cellC, okC := b.query.fc.lookup(a)
			cellD, okD := b.query.fd.lookup(a)
			if !okA || !okB || !okC || !okD {
				continue
			}

			releaseA := acquireBorrow(cellA, b.query.fa.isMutable())
			releaseB := acquireBorrow(cellB, b.query.fb.isMutable())
			releaseC := acquireBorrow(cellC, b.query.fc.isMutable())
			releaseD := acquireBorrow(cellD, b.query.fd.isMutable())

			chunk := Chunk4[A, B, C, D]{
				a: a, slots: NewSlice(0, a.Len()),
				cellA: cellA, cellB: cellB, cellC: cellC, cellD: cellD,
				fa: b.query.fa, fb: b.query.fb, fc: b.query.fc, fd: b.query.fd,
				tick: b.tick, filters: b.query.filters, sinceTick: b.sinceTick,
			}
			cont := yield(chunk)

			releaseA()
			releaseB()
			releaseC()
			releaseD()
			if !cont {
				return
			}
		}
	}
}

// Iter iterates one entity at a time across every matched chunk.
func (b *QueryBorrow4[A, B, C, D]) Iter() func(yield func(Entity, *A, *B, *C, *D) bool) {
	return func(yield func(Entity, *A, *B, *C, *D) bool) {
		for chunk := range b.IterBatched() {
			cont := true
			chunk.EachEntity(func(e Entity, a *A, bb *B, c *C, d *D) bool {
				cont = yield(e, a, bb, c, d)
				return cont
			})
			if !cont {
				return
			}
		}
	}
}

// Chunk4 is one archetype's worth of matched rows from a QueryBorrow4.
type Chunk4[A, B, C, D any] struct {
	a     *archetype
	slots Slice

	cellA, cellB, cellC, cellD *Cell
	fa                         fetchSpec[*A]
	fb                         fetchSpec[*B]
	fc                         fetchSpec[*C]
	fd                         fetchSpec[*D]

	tick      uint64
	filters   []Filter
	sinceTick uint64
}

func (c Chunk4[A, B, C, D]) Len() int            { return c.slots.Len() }
func (c Chunk4[A, B, C, D]) Entity(i int) Entity { return c.a.EntityAt(c.slots.Start + i) }

func (c Chunk4[A, B, C, D]) eachSlot(fn func(slot int) bool) {
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

func (c Chunk4[A, B, C, D]) Items() func(yield func(*A, *B, *C, *D) bool) {
	return func(yield func(*A, *B, *C, *D) bool) {
		c.eachSlot(func(slot int) bool {
			return yield(
				c.fa.fetchAt(c.cellA, slot, c.tick),
				c.fb.fetchAt(c.cellB, slot, c.tick),
				c.fc.fetchAt(c.cellC, slot, c.tick),
				c.fd.fetchAt(c.cellD, slot, c.tick),
			)
		})
	}
}

func (c Chunk4[A, B, C, D]) EachEntity(fn func(Entity, *A, *B, *C, *D) bool) {
	c.eachSlot(func(slot int) bool {
		return fn(
			c.a.EntityAt(slot),
			c.fa.fetchAt(c.cellA, slot, c.tick),
			c.fb.fetchAt(c.cellB, slot, c.tick),
			c.fc.fetchAt(c.cellC, slot, c.tick),
			c.fd.fetchAt(c.cellD, slot, c.tick),
		)
	})
}
