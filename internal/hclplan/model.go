// Package hclplan loads execution plans from HCL. A plan is the replay
// tool's description of a compiled region: named buffers and a program-order
// list of units with their slice footprints. Attribute expressions evaluate
// against the plan's `variables` block through the `var.*` namespace.
package hclplan

import (
	"fmt"
	"strconv"
	"strings"
)

// Plan is the format-agnostic model of one execution plan file.
type Plan struct {
	Buffers []*Buffer
	Units   []*UnitSpec
}

// Buffer declares a named allocation of a fixed byte size.
type Buffer struct {
	Name string
	Size int64
}

// UnitSpec is the declaration of one unit. Kind selects which fields are
// meaningful; the assembler validates per kind.
type UnitSpec struct {
	Kind string
	Name string

	// kernel
	Kernel string
	Reads  []string
	Writes []string

	// copy, all_reduce
	From string
	To   string

	// rng
	State string
	Delta int64

	// infeed / outfeed
	Into []string
	Srcs []string

	// replica_id / partition_id
	Target string

	// conditional
	Index    string
	Branches [][]*UnitSpec

	// while
	Predicate string
	Cond      []*UnitSpec
	Body      []*UnitSpec

	// call
	Units []*UnitSpec
}

// SliceRef is a parsed slice reference: a buffer name plus an optional
// half-open byte range.
type SliceRef struct {
	Buffer string
	Offset int64
	End    int64
	// Whole is true when the reference names the entire buffer ("x").
	Whole bool
}

// ParseSliceRef parses "x" (the whole buffer) or "x[lo:hi)" (a half-open
// byte range inside it).
func ParseSliceRef(s string) (SliceRef, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" {
			return SliceRef{}, fmt.Errorf("empty slice reference")
		}
		return SliceRef{Buffer: s, Whole: true}, nil
	}

	name := s[:open]
	rest := s[open+1:]
	if name == "" || !strings.HasSuffix(rest, ")") {
		return SliceRef{}, fmt.Errorf("malformed slice reference '%s' (want \"buf\" or \"buf[lo:hi)\")", s)
	}
	rest = strings.TrimSuffix(rest, ")")

	lo, hi, ok := strings.Cut(rest, ":")
	if !ok {
		return SliceRef{}, fmt.Errorf("malformed slice reference '%s': missing ':'", s)
	}
	offset, err := strconv.ParseInt(lo, 10, 64)
	if err != nil {
		return SliceRef{}, fmt.Errorf("malformed slice reference '%s': %w", s, err)
	}
	end, err := strconv.ParseInt(hi, 10, 64)
	if err != nil {
		return SliceRef{}, fmt.Errorf("malformed slice reference '%s': %w", s, err)
	}
	if offset < 0 || end < offset {
		return SliceRef{}, fmt.Errorf("slice reference '%s': invalid range [%d:%d)", s, offset, end)
	}
	return SliceRef{Buffer: name, Offset: offset, End: end}, nil
}
