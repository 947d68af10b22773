package vrp

import (
	"math/big"

	"github.com/irtools/rangeprop/ir"
)

// Simplifier rewrites statements into cheaper equivalent forms once enough
// range information is known. Every rule is gated by a sufficient condition
// on the operand ranges and checks signedness and overflow for the target
// representation; at most one rule fires per call, keeping each IR change
// local. Statement rewrites are applied in place through the mutator;
// structural changes (switch pruning) go through the edit queue.
type Simplifier struct {
	src   RangeSource
	ev    *Evaluator
	q     *EditQueue
	rules map[string]bool // nil enables everything
	trace func(format string, args ...interface{})
}

func NewSimplifier(src RangeSource, ev *Evaluator, q *EditQueue) *Simplifier {
	return &Simplifier{src: src, ev: ev, q: q}
}

// EnableRules restricts the catalog to the named rules: "truth", "divmod",
// "minmax", "abs", "bits", "conv", "switch".
func (s *Simplifier) EnableRules(rules map[string]bool) { s.rules = rules }

func (s *Simplifier) SetTrace(f func(format string, args ...interface{})) { s.trace = f }

func (s *Simplifier) enabled(rule string) bool { return s.rules == nil || s.rules[rule] }

func (s *Simplifier) tracef(format string, args ...interface{}) {
	if s.trace != nil {
		s.trace(format, args...)
	}
}

// Simplify attempts to rewrite one statement. The rules are independent and
// all sound, so attempt order only decides which one fires.
func (s *Simplifier) Simplify(v *ir.Value, m Mutator) bool {
	switch v.Op {
	case ir.OpEq, ir.OpNeq:
		if s.enabled("truth") && s.simplifyTruthOps(v, m) {
			return true
		}
	case ir.OpDiv, ir.OpMod:
		if s.enabled("divmod") && s.simplifyDivMod(v, m) {
			return true
		}
	case ir.OpMin, ir.OpMax:
		if s.enabled("minmax") && s.simplifyMinMax(v, m) {
			return true
		}
	case ir.OpAbs:
		if s.enabled("abs") && s.simplifyAbs(v, m) {
			return true
		}
	case ir.OpAnd, ir.OpOr:
		if s.enabled("bits") && s.simplifyBitOps(v, m) {
			return true
		}
	case ir.OpConv:
		if s.enabled("conv") && s.simplifyConversion(v, m) {
			return true
		}
	}
	return false
}

// hasBooleanRange reports whether the operand is boolean-typed with a range
// confined to {0, 1}.
func (s *Simplifier) hasBooleanRange(v *ir.Value) bool {
	if !v.Type.IsBool() {
		return false
	}
	r := s.src.RangeOf(v)
	return r.SubsetOf(NewRange(v.Type, NewZ(0), NewZ(1)))
}

// simplifyTruthOps folds comparisons of a boolean against a constant into
// the operand or its negation: x != 0 is x, x == 0 is !x.
func (s *Simplifier) simplifyTruthOps(v *ir.Value, m Mutator) bool {
	x, k := v.Args[0], v.Args[1]
	if k.Op != ir.OpConst {
		x, k = k, x
	}
	if k.Op != ir.OpConst || !s.hasBooleanRange(x) {
		return false
	}
	kIsZero := k.AuxInt.Sign() == 0
	wantIdentity := (v.Op == ir.OpNeq) == kIsZero
	if wantIdentity {
		m.ReplaceValue(v, ir.OpCopy, x)
		s.tracef("simplified %s to copy of %s", v.Name(), x.Name())
	} else {
		m.ReplaceValue(v, ir.OpNot, x)
		s.tracef("simplified %s to negation of %s", v.Name(), x.Name())
	}
	return true
}

// powerOfTwo returns log2 of a positive power of two.
func powerOfTwo(n *big.Int) (uint, bool) {
	if n.Sign() <= 0 {
		return 0, false
	}
	k := uint(n.BitLen() - 1)
	var p big.Int
	p.Lsh(big.NewInt(1), k)
	return k, p.Cmp(n) == 0
}

// simplifyDivMod strength-reduces division and modulo when the divisor is a
// known positive power of two and the dividend cannot be negative: division
// becomes a right shift, modulo a bit mask. The rewrite must be exact for
// every value in the operand ranges; truncated division of negative values
// rounds the other way, so those are left alone. A dividend already smaller
// than the divisor folds harder: the quotient is zero and the remainder is
// the dividend itself.
func (s *Simplifier) simplifyDivMod(v *ir.Value, m Mutator) bool {
	x, d := v.Args[0], v.Args[1]
	if d.Op != ir.OpConst || v.Type.Float {
		return false
	}
	xr := s.src.RangeOf(x).Normalize()
	// An unsigned dividend is non-negative whatever its range; a signed one
	// must be proven so.
	if v.Type.Signed && (xr.Kind != Range || xr.Min.Sign() < 0) {
		return false
	}
	k, pow2 := powerOfTwo(d.AuxInt)
	if !pow2 {
		return false
	}
	if xr.Kind == Range && xr.Max.Cmp(NewBigZ(d.AuxInt)) == -1 {
		if v.Op == ir.OpDiv {
			zero := m.MakeConst(v.Block, v.Type, new(big.Int))
			m.ReplaceValue(v, ir.OpCopy, zero)
			s.tracef("simplified %s to constant 0", v.Name())
		} else {
			m.ReplaceValue(v, ir.OpCopy, x)
			s.tracef("simplified %s to copy of %s", v.Name(), x.Name())
		}
		return true
	}
	if v.Op == ir.OpDiv {
		sh := m.MakeConst(v.Block, v.Type, big.NewInt(int64(k)))
		m.ReplaceValue(v, ir.OpRsh, x, sh)
		s.tracef("simplified %s to %s >> %d", v.Name(), x.Name(), k)
	} else {
		mask := new(big.Int).Sub(d.AuxInt, big.NewInt(1))
		mk := m.MakeConst(v.Block, v.Type, mask)
		m.ReplaceValue(v, ir.OpAnd, x, mk)
		s.tracef("simplified %s to %s & %s", v.Name(), x.Name(), mask)
	}
	return true
}

// simplifyMinMax resolves min/max to one argument when the operand ranges
// are ordered.
func (s *Simplifier) simplifyMinMax(v *ir.Value, m Mutator) bool {
	a, b := v.Args[0], v.Args[1]
	ar, br := s.src.RangeOf(a).Normalize(), s.src.RangeOf(b).Normalize()
	if ar.Kind != Range || br.Kind != Range {
		return false
	}
	var winner *ir.Value
	switch {
	case ar.Max.Cmp(br.Min) <= 0:
		if v.Op == ir.OpMin {
			winner = a
		} else {
			winner = b
		}
	case br.Max.Cmp(ar.Min) <= 0:
		if v.Op == ir.OpMin {
			winner = b
		} else {
			winner = a
		}
	default:
		return false
	}
	m.ReplaceValue(v, ir.OpCopy, winner)
	s.tracef("simplified %s to copy of %s", v.Name(), winner.Name())
	return true
}

// simplifyAbs drops an abs whose operand has a known sign.
func (s *Simplifier) simplifyAbs(v *ir.Value, m Mutator) bool {
	x := v.Args[0]
	xr := s.src.RangeOf(x).Normalize()
	if xr.Kind != Range {
		return false
	}
	switch {
	case xr.Min.Sign() >= 0:
		m.ReplaceValue(v, ir.OpCopy, x)
		s.tracef("simplified %s to copy of %s", v.Name(), x.Name())
		return true
	case xr.Max.Sign() <= 0:
		m.ReplaceValue(v, ir.OpNeg, x)
		s.tracef("simplified %s to negation of %s", v.Name(), x.Name())
		return true
	}
	return false
}

// lowOnes counts the trailing one bits of n.
func lowOnes(n *big.Int) uint {
	var k uint
	for k = 0; k < uint(n.BitLen()); k++ {
		if n.Bit(int(k)) == 0 {
			break
		}
	}
	return k
}

// simplifyBitOps removes masking that the operand range proves redundant:
// AND with a mask whose low bits cover every possible value is the value
// itself, OR with such a mask is the mask.
func (s *Simplifier) simplifyBitOps(v *ir.Value, m Mutator) bool {
	x, k := v.Args[0], v.Args[1]
	if k.Op != ir.OpConst {
		x, k = k, x
	}
	if k.Op != ir.OpConst || k.AuxInt.Sign() < 0 {
		return false
	}
	xr := s.src.RangeOf(x).Normalize()
	if xr.Kind != Range || xr.Min.Sign() < 0 {
		return false
	}
	// Every value of x fits in the mask's span of trailing ones.
	ones := lowOnes(k.AuxInt)
	limit := new(big.Int).Lsh(big.NewInt(1), ones)
	covered := xr.Max.Cmp(NewBigZ(limit)) == -1
	switch v.Op {
	case ir.OpAnd:
		if covered {
			m.ReplaceValue(v, ir.OpCopy, x)
			s.tracef("simplified %s to copy of %s", v.Name(), x.Name())
			return true
		}
		if xr.Max.Sign() == 0 || k.AuxInt.Sign() == 0 {
			zero := m.MakeConst(v.Block, v.Type, new(big.Int))
			m.ReplaceValue(v, ir.OpCopy, zero)
			s.tracef("simplified %s to constant 0", v.Name())
			return true
		}
	case ir.OpOr:
		if covered {
			m.ReplaceValue(v, ir.OpCopy, k)
			s.tracef("simplified %s to copy of %s", v.Name(), k.Name())
			return true
		}
	}
	return false
}

// floatMantissaBits is the number of integer values a float of the given
// width represents exactly.
func floatMantissaBits(t ir.NumType) uint {
	if t.Bits == 32 {
		return 24
	}
	return 53
}

// simplifyConversion drops conversions the source range proves lossless: an
// int-to-int conversion whose source already fits the destination becomes a
// narrowing copy, and a widen-then-narrow float conversion chain whose
// integer source fits the final mantissa collapses to a single conversion.
func (s *Simplifier) simplifyConversion(v *ir.Value, m Mutator) bool {
	x := v.Args[0]
	if !v.Type.Float && !x.Type.Float {
		xr := s.src.RangeOf(x).Normalize()
		if xr.Kind != Range {
			return false
		}
		tmin, tmax := typeBounds(v.Type)
		if tmin.Cmp(xr.Min) <= 0 && xr.Max.Cmp(tmax) <= 0 {
			m.ReplaceValue(v, ir.OpCopy, x)
			s.tracef("simplified %s to copy of %s", v.Name(), x.Name())
			return true
		}
		return false
	}
	if v.Type.Float && x.Op == ir.OpConv && x.Type.Float && v.Type.Bits < x.Type.Bits {
		src := x.Args[0]
		if src.Type.Float {
			return false
		}
		sr := s.src.RangeOf(src).Normalize()
		if sr.Kind != Range {
			return false
		}
		limit := new(big.Int).Lsh(big.NewInt(1), floatMantissaBits(v.Type))
		zlim := NewBigZ(limit)
		if sr.Min.Neg().Cmp(zlim) <= 0 && sr.Max.Cmp(zlim) <= 0 {
			m.ReplaceValue(v, ir.OpConv, src)
			s.tracef("simplified %s to direct conversion of %s", v.Name(), src.Name())
			return true
		}
	}
	return false
}

// SimplifySwitch prunes the case vector of a switch block: labels the
// controlling range excludes have their edges queued for removal, and the
// surviving vector is queued as the replacement. If the default edge also
// dies or only one label remains, edge removal demotes the block to an
// unconditional jump.
func (s *Simplifier) SimplifySwitch(b *ir.Block, q *EditQueue) bool {
	if !s.enabled("switch") {
		return false
	}
	if b.Kind != ir.BlockSwitch || b.Control == nil {
		return false
	}
	cr := s.src.RangeOf(b.Control).Normalize()
	if cr.Kind == Varying {
		return false
	}

	var live []ir.SwitchCase
	pruned := false
	matched := false
	for i, c := range b.Cases {
		label := NewBigZ(c.Value)
		if cr.Contains(label) {
			live = append(live, c)
			if k, ok := cr.IsSingleton(); ok && k.Cmp(label) == 0 {
				matched = true
			}
		} else {
			q.QueueRemoveEdge(ir.Edge{From: b, Index: i + 1})
			pruned = true
		}
	}
	// The default edge dies when the controlling value is pinned to one of
	// the labels.
	if matched {
		q.QueueRemoveEdge(ir.Edge{From: b, Index: 0})
		pruned = true
	}
	if !pruned {
		return false
	}
	q.QueueUpdateSwitch(b, live)
	s.tracef("pruned switch in %s to %d cases", b.Name(), len(live))
	return true
}
