package silo

// factory implements the factory pattern for constructing silo's top-level
// types, mirroring the single global Factory instance apps are expected to
// call into instead of invoking package-level constructors directly.
type factory struct{}

// Factory is the global factory instance for creating worlds and schedules.
var Factory factory

// NewWorld creates an empty World with just its root archetype.
func (f factory) NewWorld() *World {
	return newWorld()
}

// NewSchedule creates an empty Schedule.
func (f factory) NewSchedule() *Schedule {
	return NewSchedule()
}

// Query and relation construction (NewQuery2/3/4, FactoryNewComponent,
// FactoryNewRelation) are exposed as package-level generic functions rather
// than Factory methods, since Go methods cannot themselves carry type
// parameters.
