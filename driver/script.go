package driver

import (
	"fmt"
	"io"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/sarchlab/cachesim/timing/cache"
)

// ScriptRunner executes Starlark programs against a hierarchy. Scripts see
// the builtins read(addr), write(addr, value), time(), reset_time() and
// flush(), plus the constants WORD_SIZE, BLOCK_SIZE and MEMORY_SIZE.
type ScriptRunner struct {
	h   *cache.Hierarchy
	out io.Writer
}

// NewScriptRunner creates a runner. print() output goes to out, which may be
// nil.
func NewScriptRunner(h *cache.Hierarchy, out io.Writer) *ScriptRunner {
	if out == nil {
		out = io.Discard
	}

	return &ScriptRunner{h: h, out: out}
}

// Run executes the program in src, which may be a string, a []byte or nil
// to read filename. It returns the script's global variables.
func (s *ScriptRunner) Run(filename string, src any) (starlark.StringDict, error) {
	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(s.out, msg)
		},
	}

	opts := syntax.FileOptions{}
	return starlark.ExecFileOptions(&opts, thread, filename, src, s.predeclared())
}

func (s *ScriptRunner) predeclared() starlark.StringDict {
	config := s.h.Config()

	return starlark.StringDict{
		"read":        starlark.NewBuiltin("read", s.read),
		"write":       starlark.NewBuiltin("write", s.write),
		"time":        starlark.NewBuiltin("time", s.time),
		"reset_time":  starlark.NewBuiltin("reset_time", s.resetTime),
		"flush":       starlark.NewBuiltin("flush", s.flush),
		"WORD_SIZE":   starlark.MakeInt(config.WordSize),
		"BLOCK_SIZE":  starlark.MakeInt(config.BlockSize),
		"MEMORY_SIZE": starlark.MakeUint64(config.MemorySize),
	}
}

func (s *ScriptRunner) read(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var addr starlark.Int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &addr); err != nil {
		return nil, err
	}

	a, err := toAddress(b.Name(), addr)
	if err != nil {
		return nil, err
	}

	v, err := s.h.ReadValue(a)
	if err != nil {
		return nil, err
	}

	return starlark.MakeUint64(v), nil
}

func (s *ScriptRunner) write(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var addr, value starlark.Int
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &addr, &value); err != nil {
		return nil, err
	}

	a, err := toAddress(b.Name(), addr)
	if err != nil {
		return nil, err
	}

	var v uint64
	if u, ok := value.Uint64(); ok {
		v = u
	} else if i, ok := value.Int64(); ok {
		v = uint64(i)
	} else {
		return nil, fmt.Errorf("%s: value %v does not fit in 64 bits", b.Name(), value)
	}

	return starlark.None, s.h.WriteValue(a, v)
}

func (s *ScriptRunner) time(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}

	return starlark.MakeUint64(s.h.Time()), nil
}

func (s *ScriptRunner) resetTime(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}

	s.h.ResetTime()
	return starlark.None, nil
}

func (s *ScriptRunner) flush(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}

	return starlark.None, s.h.Flush()
}

func toAddress(fn string, addr starlark.Int) (uint32, error) {
	a, ok := addr.Uint64()
	if !ok || a > math.MaxUint32 {
		return 0, fmt.Errorf("%s: address %v is not a 32-bit unsigned value", fn, addr)
	}

	return uint32(a), nil
}
