// Package clock provides the abstract time counter of a cache hierarchy.
//
// Time is not wall-clock time. Every cache and memory operation advances the
// clock by a fixed cost taken from the timing configuration, so the counter
// accumulates the total cost of an access stream.
package clock

// Clock is a monotonically increasing counter of abstract time units.
type Clock struct {
	now uint64
}

// New creates a clock at time zero.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c *Clock) Now() uint64 {
	return c.now
}

// Advance moves the clock forward by cost units.
func (c *Clock) Advance(cost uint64) {
	c.now += cost
}

// Reset sets the clock back to zero. Cache contents are not affected.
func (c *Clock) Reset() {
	c.now = 0
}
