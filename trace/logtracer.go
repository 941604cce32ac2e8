// Package trace provides hooks that observe a cache hierarchy: a log tracer,
// an in-memory event counter and an SQLite event recorder.
package trace

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/cachesim/timing/cache"
)

// LogTracer is a hook that writes one line per cache event.
type LogTracer struct {
	sim.LogHookBase
}

// NewLogTracer returns a LogTracer that writes into logger.
func NewLogTracer(logger *log.Logger) *LogTracer {
	h := new(LogTracer)
	h.Logger = logger
	return h
}

// Func writes the event information into the logger.
func (h *LogTracer) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Item.(cache.Event)
	if !ok {
		return
	}

	if _, isMemory := ctx.Domain.(*cache.MemoryBacking); isMemory {
		h.Logger.Printf("%d,%s,%s,0x%x",
			evt.Time, evt.Where, ctx.Pos.Name, evt.Address)
		return
	}

	h.Logger.Printf("%d,%s,%s,0x%x,tag=0x%x,set=%d,line=%d",
		evt.Time, evt.Where, ctx.Pos.Name, evt.Address,
		evt.Tag, evt.Index, evt.Line)
}
