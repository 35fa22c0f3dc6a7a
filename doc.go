/*
Package silo provides an archetype-based Entity-Component-System (ECS) store
for games and simulations written in Go.

Silo groups entities by their exact component set into archetypes, giving
cache-friendly, column-oriented storage. Components can be added and removed
at runtime, migrating an entity between archetypes. Queries declare the
components they read and write, are cached against the archetype graph, and
can track which slots changed since the query last ran. Systems declare their
accesses up front so a Schedule can batch them for conflict-free parallel
execution.

Core Concepts:

  - Entity: a generational handle identifying a row across archetypes.
  - Component: a typed column descriptor, created once via FactoryNewComponent.
  - Archetype: the set of entities sharing one exact component set, stored
    column-by-column.
  - Cell: one archetype column plus its change-tracking metadata.
  - Query: a cached, filtered view over the archetype graph.
  - System / Schedule: a declared access set per callable, batched so that
    non-conflicting systems run in parallel.

Basic Usage:

	world := silo.Factory.NewWorld()

	position := silo.FactoryNewComponent[Position]()
	velocity := silo.FactoryNewComponent[Velocity]()

	id, _ := world.Spawn()
	world.Set(id, position, Position{X: 1, Y: 2})
	world.Set(id, velocity, Velocity{X: 0, Y: 1})

	q := silo.NewQuery2(silo.Mutable(position), silo.Read(velocity))
	borrow := q.Borrow(world)
	defer borrow.Release()

	for chunk := range borrow.IterBatched() {
		for pos, vel := range chunk.Items() {
			pos.X += vel.X
			pos.Y += vel.Y
		}
	}

Silo is host-embedded: it has no network, disk, or scripting surface of its
own. Serialization, command-buffer replay, and relation builder sugar are
thin layers built on top of the core query and world APIs.
*/
package silo
