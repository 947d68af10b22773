// Package vrp implements value range propagation over the IR contract in
// package ir: an interval lattice per SSA value, a store with equivalence
// tracking, statement-level range extraction, tri-state conditional
// evaluation, range-driven statement simplification, and a deferred queue
// for the structural edits the analysis decides on.
package vrp

import (
	"fmt"

	"github.com/irtools/rangeprop/ir"
)

// RangeKind tags the variants of the lattice.
type RangeKind uint8

const (
	// Undefined is the bottom element: no value observed yet, or code
	// proven unreachable.
	Undefined RangeKind = iota
	// Range is an inclusive interval [Min, Max].
	Range
	// AntiRange is the complement of an inclusive interval: every
	// representable value except [Min, Max].
	AntiRange
	// Varying is the top element: any representable value.
	Varying
)

var rangeKindNames = [...]string{
	Undefined: "UNDEFINED",
	Range:     "RANGE",
	AntiRange: "ANTI_RANGE",
	Varying:   "VARYING",
}

func (k RangeKind) String() string { return rangeKindNames[k] }

// VRange is one lattice value: the set of runtime values a variable of the
// given numeric type may hold. Min and Max are meaningful only for the Range
// and AntiRange kinds and are always ordered, finite, and within the type's
// representable window. Wrap-around sets are never represented directly;
// anything that would wrap is widened to Varying before it is stored.
type VRange struct {
	Kind RangeKind
	Min  Z
	Max  Z
	Type ir.NumType
}

func VaryingFor(t ir.NumType) VRange   { return VRange{Kind: Varying, Type: t} }
func UndefinedFor(t ir.NumType) VRange { return VRange{Kind: Undefined, Type: t} }

// typeBounds returns the representable window of an integer type.
func typeBounds(t ir.NumType) (Z, Z) {
	return NewBigZ(t.MinValue()), NewBigZ(t.MaxValue())
}

// NewRange builds [lo, hi] of type t, clamping infinite or out-of-window
// bounds to the window. An interval that ends up empty describes an
// impossible condition and collapses to Undefined. Floating-point types
// carry no bounds and yield Varying.
func NewRange(t ir.NumType, lo, hi Z) VRange {
	if t.Float {
		return VaryingFor(t)
	}
	tmin, tmax := typeBounds(t)
	lo = MaxZ(lo, tmin)
	hi = MinZ(hi, tmax)
	if lo.Cmp(hi) == 1 {
		return UndefinedFor(t)
	}
	return VRange{Kind: Range, Min: lo, Max: hi, Type: t}.Normalize()
}

// NewAntiRange builds the complement of [lo, hi] in type t.
func NewAntiRange(t ir.NumType, lo, hi Z) VRange {
	if t.Float {
		return VaryingFor(t)
	}
	tmin, tmax := typeBounds(t)
	lo = MaxZ(lo, tmin)
	hi = MinZ(hi, tmax)
	if lo.Cmp(hi) == 1 {
		// Excluding nothing.
		return VaryingFor(t)
	}
	return VRange{Kind: AntiRange, Min: lo, Max: hi, Type: t}.Normalize()
}

// Singleton builds the one-element range {z}.
func Singleton(t ir.NumType, z Z) VRange {
	return NewRange(t, z, z)
}

// NonZero builds the set of all representable values except zero.
func NonZero(t ir.NumType) VRange {
	return NewAntiRange(t, NewZ(0), NewZ(0))
}

// Normalize rewrites r into canonical form: intervals covering the whole
// window become Varying, anti-ranges touching a window end become plain
// ranges, anti-ranges excluding the whole window become Undefined. Equality
// of lattice values is set equality and must go through here first.
func (r VRange) Normalize() VRange {
	switch r.Kind {
	case Undefined, Varying:
		return r
	}
	if r.Type.Float {
		return VaryingFor(r.Type)
	}
	tmin, tmax := typeBounds(r.Type)
	switch r.Kind {
	case Range:
		if r.Min.Cmp(tmin) == 0 && r.Max.Cmp(tmax) == 0 {
			return VaryingFor(r.Type)
		}
		return r
	case AntiRange:
		loTouch := r.Min.Cmp(tmin) == 0
		hiTouch := r.Max.Cmp(tmax) == 0
		switch {
		case loTouch && hiTouch:
			return UndefinedFor(r.Type)
		case loTouch:
			return VRange{Kind: Range, Min: r.Max.Succ(), Max: tmax, Type: r.Type}
		case hiTouch:
			return VRange{Kind: Range, Min: tmin, Max: r.Min.Pred(), Type: r.Type}
		}
		return r
	}
	panic(fmt.Sprintf("unhandled range kind %d", r.Kind))
}

// Equal reports set equality.
func (r VRange) Equal(o VRange) bool {
	if r.Type != o.Type {
		return false
	}
	a, b := r.Normalize(), o.Normalize()
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Undefined, Varying:
		return true
	}
	return a.Min.Cmp(b.Min) == 0 && a.Max.Cmp(b.Max) == 0
}

// Contains reports whether the set described by r includes z.
func (r VRange) Contains(z Z) bool {
	switch r.Kind {
	case Undefined:
		return false
	case Varying:
		return true
	case Range:
		return r.Min.Cmp(z) <= 0 && z.Cmp(r.Max) <= 0
	case AntiRange:
		return r.Min.Cmp(z) == 1 || z.Cmp(r.Max) == 1
	}
	panic("unreachable")
}

// IsSingleton reports whether r holds exactly one value, and which.
func (r VRange) IsSingleton() (Z, bool) {
	if r.Kind == Range && r.Min.Cmp(r.Max) == 0 {
		return r.Min, true
	}
	return Z{}, false
}

// SubsetOf reports whether every value in r is also in o. For anti-range
// versus range combinations this is decided conservatively: false unless
// provable.
func (r VRange) SubsetOf(o VRange) bool {
	r, o = r.Normalize(), o.Normalize()
	if r.Kind == Undefined || o.Kind == Varying {
		return true
	}
	if r.Kind == Varying || o.Kind == Undefined {
		return false
	}
	switch {
	case r.Kind == Range && o.Kind == Range:
		return o.Min.Cmp(r.Min) <= 0 && r.Max.Cmp(o.Max) <= 0
	case r.Kind == Range && o.Kind == AntiRange:
		// r must avoid o's excluded zone entirely.
		return r.Max.Cmp(o.Min) == -1 || r.Min.Cmp(o.Max) == 1
	case r.Kind == AntiRange && o.Kind == AntiRange:
		// r's excluded zone must cover o's.
		return r.Min.Cmp(o.Min) <= 0 && o.Max.Cmp(r.Max) <= 0
	}
	return false
}

// Union returns the most precise representable set containing both operands:
// the merge operator applied at phi nodes and when combining evidence.
// Undefined is its identity, Varying absorbs.
func (r VRange) Union(o VRange) VRange {
	if r.Kind == Undefined {
		return o
	}
	if o.Kind == Undefined {
		return r
	}
	if r.Kind == Varying || o.Kind == Varying {
		return VaryingFor(r.Type)
	}
	switch {
	case r.Kind == Range && o.Kind == Range:
		return NewRange(r.Type, MinZ(r.Min, o.Min), MaxZ(r.Max, o.Max))
	case r.Kind == AntiRange && o.Kind == AntiRange:
		// The union excludes only what both exclude.
		lo := MaxZ(r.Min, o.Min)
		hi := MinZ(r.Max, o.Max)
		if lo.Cmp(hi) == 1 {
			return VaryingFor(r.Type)
		}
		return NewAntiRange(r.Type, lo, hi)
	}
	// One range, one anti-range: shrink the excluded zone past the range.
	ar, rr := r, o
	if r.Kind == Range {
		ar, rr = o, r
	}
	if rr.Max.Cmp(ar.Min) == -1 || rr.Min.Cmp(ar.Max) == 1 {
		// Range lies outside the excluded zone; the anti-range already
		// contains it.
		return ar
	}
	switch {
	case rr.Min.Cmp(ar.Min) <= 0 && rr.Max.Cmp(ar.Max) >= 0:
		return VaryingFor(r.Type)
	case rr.Min.Cmp(ar.Min) <= 0:
		return NewAntiRange(r.Type, rr.Max.Succ(), ar.Max)
	case rr.Max.Cmp(ar.Max) >= 0:
		return NewAntiRange(r.Type, ar.Min, rr.Min.Pred())
	}
	// The range splits the zone; keep the wider remnant excluded.
	lowWidth := rr.Min.Sub(ar.Min)
	highWidth := ar.Max.Sub(rr.Max)
	if lowWidth.Cmp(highWidth) >= 0 {
		return NewAntiRange(r.Type, ar.Min, rr.Min.Pred())
	}
	return NewAntiRange(r.Type, rr.Max.Succ(), ar.Max)
}

// Intersect returns the tightest representable set consistent with both
// operands: applied when a condition is known to hold on a path. Undefined
// absorbs, Varying is its identity. Where the exact intersection is not
// representable, a sound superset of it is returned.
func (r VRange) Intersect(o VRange) VRange {
	if r.Kind == Undefined || o.Kind == Undefined {
		return UndefinedFor(r.Type)
	}
	if r.Kind == Varying {
		return o
	}
	if o.Kind == Varying {
		return r
	}
	switch {
	case r.Kind == Range && o.Kind == Range:
		lo := MaxZ(r.Min, o.Min)
		hi := MinZ(r.Max, o.Max)
		if lo.Cmp(hi) == 1 {
			return UndefinedFor(r.Type)
		}
		return NewRange(r.Type, lo, hi)
	case r.Kind == AntiRange && o.Kind == AntiRange:
		if r.Max.Succ().Cmp(o.Min) >= 0 && o.Max.Succ().Cmp(r.Min) >= 0 {
			// Overlapping or adjacent zones merge exactly.
			return NewAntiRange(r.Type, MinZ(r.Min, o.Min), MaxZ(r.Max, o.Max))
		}
		// Disjoint zones: the exact result is not representable; keep the
		// wider exclusion.
		if r.Max.Sub(r.Min).Cmp(o.Max.Sub(o.Min)) >= 0 {
			return r
		}
		return o
	}
	ar, rr := r, o
	if r.Kind == Range {
		ar, rr = o, r
	}
	switch {
	case rr.Max.Cmp(ar.Min) == -1 || rr.Min.Cmp(ar.Max) == 1:
		return rr
	case rr.Min.Cmp(ar.Min) >= 0 && rr.Max.Cmp(ar.Max) <= 0:
		return UndefinedFor(r.Type)
	case rr.Min.Cmp(ar.Min) == -1 && rr.Max.Cmp(ar.Max) == 1:
		// The zone punches a hole in the middle of the range; not
		// representable, keep the range.
		return rr
	case rr.Min.Cmp(ar.Min) == -1:
		return NewRange(r.Type, rr.Min, ar.Min.Pred())
	default:
		return NewRange(r.Type, ar.Max.Succ(), rr.Max)
	}
}

func (r VRange) String() string {
	switch r.Kind {
	case Undefined:
		return "UNDEFINED"
	case Varying:
		return "VARYING"
	case Range:
		return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
	case AntiRange:
		return fmt.Sprintf("~[%s, %s]", r.Min, r.Max)
	}
	panic("unreachable")
}
