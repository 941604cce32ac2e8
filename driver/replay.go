package driver

import (
	"fmt"
	"io"

	"github.com/rs/xid"

	"github.com/sarchlab/cachesim/timing/cache"
)

// Result summarizes a replay.
type Result struct {
	RunID  string
	Reads  int
	Writes int
	// Time is the clock value after the last access.
	Time  uint64
	Stats cache.HierarchyStats
}

// Replay runs accesses against h in order, printing one line per access to
// w in the format of the lab drivers. w may be nil. Replay stops at the first
// failing access and reports its trace line.
func Replay(h *cache.Hierarchy, accesses []Access, w io.Writer) (Result, error) {
	if w == nil {
		w = io.Discard
	}

	res := Result{RunID: xid.New().String()}
	mask := wordMask(h.WordSize())

	for _, a := range accesses {
		switch a.Op {
		case OpRead:
			v, err := h.ReadValue(a.Addr)
			if err != nil {
				return res, fmt.Errorf("line %d: read 0x%x: %w", a.Line, a.Addr, err)
			}
			res.Reads++
			fmt.Fprintf(w, "Read; Address %d; Value %d; Time %d\n",
				a.Addr, v, h.Time())
		case OpWrite:
			if err := h.WriteValue(a.Addr, a.Value); err != nil {
				return res, fmt.Errorf("line %d: write 0x%x: %w", a.Line, a.Addr, err)
			}
			res.Writes++
			fmt.Fprintf(w, "Wrote; Address %d; Value %d; Time %d\n",
				a.Addr, a.Value&mask, h.Time())
		case OpTime:
			fmt.Fprintf(w, "Time: %d\n", h.Time())
		case OpResetTime:
			h.ResetTime()
		case OpFlush:
			if err := h.Flush(); err != nil {
				return res, fmt.Errorf("line %d: flush: %w", a.Line, err)
			}
			fmt.Fprintf(w, "Flushed; Time %d\n", h.Time())
		}
	}

	res.Time = h.Time()
	res.Stats = h.Stats()

	return res, nil
}

func wordMask(wordSize int) uint64 {
	if wordSize >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*wordSize) - 1
}
