package trace

import (
	"sort"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/cache"
)

// EventCounter is a hook that counts events per location and hook position.
type EventCounter struct {
	counts map[string]map[string]uint64
}

// NewEventCounter returns an empty EventCounter.
func NewEventCounter() *EventCounter {
	return &EventCounter{counts: make(map[string]map[string]uint64)}
}

// Func counts the event.
func (c *EventCounter) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(cache.Event)
	if !ok {
		return
	}

	byPos, ok := c.counts[evt.Where]
	if !ok {
		byPos = make(map[string]uint64)
		c.counts[evt.Where] = byPos
	}
	byPos[ctx.Pos.Name]++
}

// Count returns how many events pos raised at where.
func (c *EventCounter) Count(where string, pos *sim.HookPos) uint64 {
	return c.counts[where][pos.Name]
}

// Total returns how many events pos raised anywhere.
func (c *EventCounter) Total(pos *sim.HookPos) uint64 {
	var total uint64
	for _, byPos := range c.counts {
		total += byPos[pos.Name]
	}
	return total
}

// Locations returns the names of every location that raised an event,
// sorted.
func (c *EventCounter) Locations() []string {
	names := make([]string, 0, len(c.counts))
	for name := range c.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset forgets every count.
func (c *EventCounter) Reset() {
	c.counts = make(map[string]map[string]uint64)
}
