// Package driver runs access sequences against a cache hierarchy, either
// from a plain-text trace or from a Starlark script.
package driver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Op is the kind of a trace entry.
type Op int

const (
	// OpRead reads one word.
	OpRead Op = iota
	// OpWrite writes one word.
	OpWrite
	// OpTime prints the current time.
	OpTime
	// OpResetTime sets the clock to zero.
	OpResetTime
	// OpFlush writes every dirty line down to memory.
	OpFlush
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "R"
	case OpWrite:
		return "W"
	case OpTime:
		return "T"
	case OpResetTime:
		return "Z"
	case OpFlush:
		return "F"
	default:
		return "?"
	}
}

// Access is one parsed trace entry.
type Access struct {
	Op    Op
	Addr  uint32
	Value uint64
	// Line is the 1-based line of the trace the entry came from.
	Line int
}

// ErrSyntax is wrapped by every ParseError.
var ErrSyntax = errors.New("trace syntax error")

// ParseError reports a malformed trace line.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: line %d: %s: %q", ErrSyntax, e.Line, e.Reason, e.Text)
}

// Unwrap returns ErrSyntax.
func (e *ParseError) Unwrap() error {
	return ErrSyntax
}

// ParseTrace reads a trace with one access per line:
//
//	R <addr>          read a word
//	W <addr> <value>  write a word
//	T                 print the time
//	Z                 reset the time
//	F                 flush
//
// Numbers use Go literal syntax. Everything after '#' is a comment.
func ParseTrace(r io.Reader) ([]Access, error) {
	var accesses []Access

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()

		line := text
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		a, err := parseFields(fields)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Text: text, Reason: err.Error()}
		}
		a.Line = lineNo
		accesses = append(accesses, a)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return accesses, nil
}

func parseFields(fields []string) (Access, error) {
	var (
		a        Access
		operands int
	)

	switch strings.ToUpper(fields[0]) {
	case "R":
		a.Op, operands = OpRead, 1
	case "W":
		a.Op, operands = OpWrite, 2
	case "T":
		a.Op = OpTime
	case "Z":
		a.Op = OpResetTime
	case "F":
		a.Op = OpFlush
	default:
		return a, fmt.Errorf("unknown operation %q", fields[0])
	}

	if len(fields)-1 != operands {
		return a, fmt.Errorf("%s takes %d operand(s), got %d",
			a.Op, operands, len(fields)-1)
	}

	if operands >= 1 {
		addr, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return a, fmt.Errorf("bad address %q", fields[1])
		}
		a.Addr = uint32(addr)
	}

	if operands == 2 {
		v, err := parseValue(fields[2])
		if err != nil {
			return a, fmt.Errorf("bad value %q", fields[2])
		}
		a.Value = v
	}

	return a, nil
}

// parseValue accepts unsigned literals and negative ones, which are stored
// in two's complement.
func parseValue(s string) (uint64, error) {
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 64)
		return uint64(v), err
	}

	return strconv.ParseUint(s, 0, 64)
}
