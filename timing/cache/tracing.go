package cache

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Hook positions invoked by cache levels and the backing store. The
// HookCtx.Item of every invocation is an Event.
var (
	// HookPosHit is invoked when a lookup finds a valid line with a matching
	// tag.
	HookPosHit = &sim.HookPos{Name: "CacheHit"}

	// HookPosMiss is invoked when a lookup finds no matching line, before the
	// block is requested from the level below.
	HookPosMiss = &sim.HookPos{Name: "CacheMiss"}

	// HookPosEviction is invoked when a valid line is replaced.
	HookPosEviction = &sim.HookPos{Name: "CacheEviction"}

	// HookPosWriteBack is invoked when a dirty line is written to the level
	// below, before the write is issued.
	HookPosWriteBack = &sim.HookPos{Name: "CacheWriteBack"}

	// HookPosMemRead is invoked when the backing store serves a block read.
	HookPosMemRead = &sim.HookPos{Name: "MemRead"}

	// HookPosMemWrite is invoked when the backing store accepts a block
	// write.
	HookPosMemWrite = &sim.HookPos{Name: "MemWrite"}
)

// Event describes what happened at a hook position.
type Event struct {
	// Where is the name of the level or store that raised the event.
	Where string

	// Address is the address being looked up. For evictions and
	// write-backs it is the block address of the line being replaced.
	Address uint64

	// Tag and Index are the decoded fields of Address. They are zero for
	// backing store events.
	Tag   uint64
	Index uint64

	// Line is the physical line index involved, or -1 if none.
	Line int

	// Time is the clock value when the event was raised.
	Time uint64
}

// hookable is embedded by everything that raises cache events.
type hookable struct {
	*sim.HookableBase
}

func newHookable() hookable {
	return hookable{HookableBase: sim.NewHookableBase()}
}

func (h hookable) raise(domain sim.Hookable, pos *sim.HookPos, evt Event) {
	if h.NumHooks() == 0 {
		return
	}

	h.InvokeHook(sim.HookCtx{
		Domain: domain,
		Pos:    pos,
		Item:   evt,
	})
}

// acceptOnce registers hook unless it is already registered.
func (h hookable) acceptOnce(hook sim.Hook) {
	for _, existing := range h.Hooks() {
		if existing == hook {
			return
		}
	}

	h.AcceptHook(hook)
}
