package vrp

import (
	"fmt"

	"github.com/irtools/rangeprop/ir"
)

// TriState is the outcome of comparing two ranges: definitely true for every
// value pair, definitely false for every value pair, or not decidable from
// the ranges alone. The zero value is Unknown.
type TriState int8

const (
	Unknown TriState = iota
	False
	True
)

var triStateNames = [...]string{
	Unknown: "UNKNOWN",
	False:   "FALSE",
	True:    "TRUE",
}

func (t TriState) String() string { return triStateNames[t] }

func (t TriState) Negate() TriState {
	switch t {
	case True:
		return False
	case False:
		return True
	}
	return Unknown
}

// CompareRanges reduces op over two ranges to a tri-state result. True is
// returned only if every pair drawn from a×b satisfies op, False only if no
// pair does. Floating-point ranges never decide an ordering here: a Varying
// float may be NaN, which is unordered against everything.
func CompareRanges(op ir.Op, a, b VRange) TriState {
	if a.Kind == Undefined || b.Kind == Undefined {
		return Unknown
	}
	if a.Type.Float || b.Type.Float {
		return Unknown
	}
	a, b = a.Normalize(), b.Normalize()

	switch op {
	case ir.OpEq:
		if av, ok := a.IsSingleton(); ok {
			if bv, ok := b.IsSingleton(); ok {
				if av.Cmp(bv) == 0 {
					return True
				}
				return False
			}
			if !b.Contains(av) {
				return False
			}
			return Unknown
		}
		if bv, ok := b.IsSingleton(); ok {
			if !a.Contains(bv) {
				return False
			}
			return Unknown
		}
		if disjointRanges(a, b) {
			return False
		}
		return Unknown
	case ir.OpNeq:
		return CompareRanges(ir.OpEq, a, b).Negate()
	case ir.OpLess:
		if a.Kind != Range || b.Kind != Range {
			return Unknown
		}
		if a.Max.Cmp(b.Min) == -1 {
			return True
		}
		if a.Min.Cmp(b.Max) >= 0 {
			return False
		}
		return Unknown
	case ir.OpLeq:
		return CompareRanges(ir.OpGreater, a, b).Negate()
	case ir.OpGreater:
		return CompareRanges(ir.OpLess, b, a)
	case ir.OpGeq:
		return CompareRanges(ir.OpLess, a, b).Negate()
	}
	panic(fmt.Sprintf("not a comparison: %s", op))
}

// disjointRanges reports whether two normalized ranges provably share no
// value.
func disjointRanges(a, b VRange) bool {
	switch {
	case a.Kind == Range && b.Kind == Range:
		return a.Max.Cmp(b.Min) == -1 || b.Max.Cmp(a.Min) == -1
	case a.Kind == Range && b.Kind == AntiRange:
		// a must lie entirely inside b's excluded zone.
		return b.Min.Cmp(a.Min) <= 0 && a.Max.Cmp(b.Max) <= 0
	case a.Kind == AntiRange && b.Kind == Range:
		return disjointRanges(b, a)
	}
	return false
}
