package vrp

import (
	"math/big"

	"github.com/irtools/rangeprop/ir"
)

// Arithmetic on lattice values. Bounds are computed in unbounded integers
// and only become a range again if the whole result interval fits the value
// type; anything that could wrap widens to Varying instead. Undefined is
// absorbing throughout: an undefined operand means the statement is
// unreachable, and its result never constrains anything.

// fitOrVarying builds [lo, hi] if the interval is certain not to overflow
// type t, and Varying otherwise.
func fitOrVarying(t ir.NumType, lo, hi Z) VRange {
	if t.Float || lo.Infinite() || hi.Infinite() {
		return VaryingFor(t)
	}
	tmin, tmax := typeBounds(t)
	if lo.Cmp(tmin) == -1 || hi.Cmp(tmax) == 1 {
		return VaryingFor(t)
	}
	return VRange{Kind: Range, Min: lo, Max: hi, Type: t}.Normalize()
}

// binOperands validates a binary operation's inputs. done is true if the
// result is already decided: an undefined operand, a float operation, or an
// operand shape (Varying, anti-range) the plain interval rules cannot use.
func binOperands(a, b VRange) (res VRange, done bool) {
	if a.Kind == Undefined || b.Kind == Undefined {
		return UndefinedFor(a.Type), true
	}
	if a.Type.Float {
		return VaryingFor(a.Type), true
	}
	if a.Kind != Range || b.Kind != Range {
		return VaryingFor(a.Type), true
	}
	return VRange{}, false
}

func (a VRange) Add(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	return fitOrVarying(a.Type, a.Min.Add(b.Min), a.Max.Add(b.Max))
}

func (a VRange) Sub(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	return fitOrVarying(a.Type, a.Min.Sub(b.Max), a.Max.Sub(b.Min))
}

func (a VRange) Mul(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	p1 := a.Min.Mul(b.Min)
	p2 := a.Min.Mul(b.Max)
	p3 := a.Max.Mul(b.Min)
	p4 := a.Max.Mul(b.Max)
	return fitOrVarying(a.Type, MinZ(p1, p2, p3, p4), MaxZ(p1, p2, p3, p4))
}

// quoCandidates is the quotient interval of a (a plain range) divided by the
// sign-pure, zero-free divisor interval [bl, bu].
func quoCandidates(a VRange, bl, bu Z) (Z, Z) {
	q1 := a.Min.Quo(bl)
	q2 := a.Min.Quo(bu)
	q3 := a.Max.Quo(bl)
	q4 := a.Max.Quo(bu)
	return MinZ(q1, q2, q3, q4), MaxZ(q1, q2, q3, q4)
}

func (a VRange) Div(b VRange) VRange {
	if a.Kind == Undefined || b.Kind == Undefined {
		return UndefinedFor(a.Type)
	}
	if a.Type.Float || a.Kind != Range {
		return VaryingFor(a.Type)
	}
	b = b.Normalize()
	switch b.Kind {
	case Range:
		if b.Min.Sign() <= 0 && b.Max.Sign() >= 0 {
			// The divisor may be zero.
			return VaryingFor(a.Type)
		}
		lo, hi := quoCandidates(a, b.Min, b.Max)
		return fitOrVarying(a.Type, lo, hi)
	case AntiRange:
		if !b.Equal(NonZero(b.Type)) {
			return VaryingFor(a.Type)
		}
		// Divisor is any non-zero value; quotient extremes occur at ±1.
		tmin, tmax := typeBounds(b.Type)
		lo1, hi1 := quoCandidates(a, NewZ(1), tmax)
		lo2, hi2 := quoCandidates(a, tmin, NewZ(-1))
		return fitOrVarying(a.Type, MinZ(lo1, lo2), MaxZ(hi1, hi2))
	}
	return VaryingFor(a.Type)
}

func (a VRange) Mod(b VRange) VRange {
	if a.Kind == Undefined || b.Kind == Undefined {
		return UndefinedFor(a.Type)
	}
	if a.Type.Float || a.Kind != Range {
		return VaryingFor(a.Type)
	}
	b = b.Normalize()
	var bound Z // exclusive magnitude bound of the divisor
	switch {
	case b.Kind == Range && (b.Min.Sign() > 0 || b.Max.Sign() < 0):
		bound = MaxZ(b.Min.Abs(), b.Max.Abs())
	case b.Kind == AntiRange && b.Equal(NonZero(b.Type)):
		tmin, tmax := typeBounds(b.Type)
		bound = MaxZ(tmin.Abs(), tmax.Abs())
	default:
		return VaryingFor(a.Type)
	}
	m := bound.Pred()
	// The remainder takes the dividend's sign, and its magnitude is bounded
	// by both the divisor and the dividend.
	switch {
	case a.Min.Sign() >= 0:
		return fitOrVarying(a.Type, NewZ(0), MinZ(a.Max, m))
	case a.Max.Sign() <= 0:
		return fitOrVarying(a.Type, MaxZ(a.Min, m.Neg()), NewZ(0))
	default:
		mm := MinZ(m, MaxZ(a.Min.Abs(), a.Max.Abs()))
		return fitOrVarying(a.Type, mm.Neg(), mm)
	}
}

func shiftInWindow(t ir.NumType, b VRange) bool {
	return b.Kind == Range && b.Min.Sign() >= 0 && b.Max.Cmp(NewZ(int64(t.Bits-1))) <= 0
}

func shiftLeft(z, s Z) Z {
	n := new(big.Int).Lsh(z.Int(), uint(s.Int().Uint64()))
	return Z{integer: n}
}

// shiftRight is an arithmetic shift; big.Int.Rsh floors, which matches the
// sign-extending shift of two's-complement machines.
func shiftRight(z, s Z) Z {
	n := new(big.Int).Rsh(z.Int(), uint(s.Int().Uint64()))
	return Z{integer: n}
}

// bitCeil rounds a non-negative bound up to the largest value with the same
// bit length: the tightest sound upper bound for OR and XOR results.
func bitCeil(z Z) Z {
	n := big.NewInt(1)
	n.Lsh(n, uint(z.Int().BitLen()))
	n.Sub(n, big.NewInt(1))
	return Z{integer: n}
}

func (a VRange) Lsh(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	if !shiftInWindow(a.Type, b) {
		return VaryingFor(a.Type)
	}
	c1 := shiftLeft(a.Min, b.Min)
	c2 := shiftLeft(a.Min, b.Max)
	c3 := shiftLeft(a.Max, b.Min)
	c4 := shiftLeft(a.Max, b.Max)
	return fitOrVarying(a.Type, MinZ(c1, c2, c3, c4), MaxZ(c1, c2, c3, c4))
}

func (a VRange) Rsh(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	if !shiftInWindow(a.Type, b) {
		return VaryingFor(a.Type)
	}
	c1 := shiftRight(a.Min, b.Min)
	c2 := shiftRight(a.Min, b.Max)
	c3 := shiftRight(a.Max, b.Min)
	c4 := shiftRight(a.Max, b.Max)
	return fitOrVarying(a.Type, MinZ(c1, c2, c3, c4), MaxZ(c1, c2, c3, c4))
}

func (a VRange) And(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	if a.Min.Sign() < 0 || b.Min.Sign() < 0 {
		return VaryingFor(a.Type)
	}
	return fitOrVarying(a.Type, NewZ(0), MinZ(a.Max, b.Max))
}

func (a VRange) Or(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	if a.Min.Sign() < 0 || b.Min.Sign() < 0 {
		return VaryingFor(a.Type)
	}
	return fitOrVarying(a.Type, MaxZ(a.Min, b.Min), bitCeil(MaxZ(a.Max, b.Max)))
}

func (a VRange) Xor(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	if a.Min.Sign() < 0 || b.Min.Sign() < 0 {
		return VaryingFor(a.Type)
	}
	return fitOrVarying(a.Type, NewZ(0), bitCeil(MaxZ(a.Max, b.Max)))
}

func (a VRange) Neg() VRange {
	if a.Kind == Undefined {
		return a
	}
	if a.Type.Float || a.Kind != Range {
		return VaryingFor(a.Type)
	}
	return fitOrVarying(a.Type, a.Max.Neg(), a.Min.Neg())
}

func (a VRange) Abs() VRange {
	if a.Kind == Undefined {
		return a
	}
	if a.Type.Float || a.Kind != Range {
		return VaryingFor(a.Type)
	}
	switch {
	case a.Min.Sign() >= 0:
		return a
	case a.Max.Sign() <= 0:
		return a.Neg()
	default:
		return fitOrVarying(a.Type, NewZ(0), MaxZ(a.Min.Abs(), a.Max))
	}
}

func (a VRange) Min2(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	return fitOrVarying(a.Type, MinZ(a.Min, b.Min), MinZ(a.Max, b.Max))
}

func (a VRange) Max2(b VRange) VRange {
	if r, done := binOperands(a, b); done {
		return r
	}
	return fitOrVarying(a.Type, MaxZ(a.Min, b.Min), MaxZ(a.Max, b.Max))
}

// Not is boolean negation of a 1-bit range.
func (a VRange) Not() VRange {
	if a.Kind == Undefined {
		return a
	}
	if a.Kind != Range {
		return VaryingFor(a.Type)
	}
	one := NewZ(1)
	return fitOrVarying(a.Type, one.Sub(a.Max), one.Sub(a.Min))
}

// Cast converts a to numeric type `to`, clamping to the destination's
// representable window. A source range that does not fit becomes Varying:
// truncation makes the result ambiguous.
func (a VRange) Cast(to ir.NumType) VRange {
	if a.Kind == Undefined {
		return UndefinedFor(to)
	}
	if a.Type.Float || to.Float {
		return VaryingFor(to)
	}
	a = a.Normalize()
	if a.Kind != Range {
		return VaryingFor(to)
	}
	tmin, tmax := typeBounds(to)
	if a.Min.Cmp(tmin) == -1 || a.Max.Cmp(tmax) == 1 {
		return VaryingFor(to)
	}
	return VRange{Kind: Range, Min: a.Min, Max: a.Max, Type: to}.Normalize()
}
