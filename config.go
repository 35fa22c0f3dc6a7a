package silo

// Config holds process-global configuration for the store.
var Config config = config{
	scheduleWorkers: 0,
	panicOnBorrow:   true,
}

type config struct {
	// scheduleWorkers caps the number of goroutines a Schedule's ExecutePar
	// runs concurrently per batch (via errgroup.Group.SetLimit). Zero means
	// "one goroutine per system in the batch".
	scheduleWorkers int

	// panicOnBorrow controls whether a cell borrow conflict panics (the
	// spec's debug contract) or is instead surfaced as a BorrowConflict
	// error to the caller. Production hosts that have already fuzzed their
	// system graph may turn this off.
	panicOnBorrow bool
}

// SetScheduleWorkers caps how many goroutines ExecutePar runs concurrently
// per batch.
func (c *config) SetScheduleWorkers(n int) {
	c.scheduleWorkers = n
}

// SetPanicOnBorrowConflict toggles whether a cell borrow conflict panics.
func (c *config) SetPanicOnBorrowConflict(v bool) {
	c.panicOnBorrow = v
}
