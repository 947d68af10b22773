package vrp

import (
	"github.com/irtools/rangeprop/ir"
)

// EvolutionOracle supplies externally computed loop-carried bounds, keyed by
// loop header. A bound can only ever tighten an extracted range; it is
// applied as one more intersection.
type EvolutionOracle interface {
	Bound(loop *ir.Block, v *ir.Value) (VRange, bool)
}

// Extractor derives the output range of a statement from the ranges of its
// inputs. It never mutates the IR: it is a pure function of the statement
// and a range snapshot, so the driver may re-run it at will.
type Extractor struct {
	src  RangeSource
	scev EvolutionOracle

	// reachable reports whether a control-flow edge has been seen
	// executable; nil means every edge is. Only phi merges consult it.
	reachable func(ir.Edge) bool
}

func NewExtractor(src RangeSource, scev EvolutionOracle) *Extractor {
	return &Extractor{src: src, scev: scev}
}

// SetReachable installs the driver's edge reachability predicate.
func (x *Extractor) SetReachable(f func(ir.Edge) bool) { x.reachable = f }

// Extract computes the range of v under the current snapshot.
func (x *Extractor) Extract(v *ir.Value) VRange {
	r := x.extract(v)
	if x.scev != nil && v.Block != nil && v.Block.Loop != nil {
		if b, ok := x.scev.Bound(v.Block.Loop, v); ok {
			r = r.Intersect(b)
		}
	}
	return r
}

func (x *Extractor) extract(v *ir.Value) VRange {
	switch v.Op {
	case ir.OpConst:
		if v.Type.Float {
			return VaryingFor(v.Type)
		}
		return Singleton(v.Type, NewBigZ(v.AuxInt))
	case ir.OpParam:
		return VaryingFor(v.Type)
	case ir.OpCopy:
		return x.src.RangeOf(v.Args[0])
	case ir.OpPhi:
		return x.extractPhi(v)
	case ir.OpSigma:
		return x.extractSigma(v)
	case ir.OpAdd:
		return x.arg(v, 0).Add(x.arg(v, 1))
	case ir.OpSub:
		return x.arg(v, 0).Sub(x.arg(v, 1))
	case ir.OpMul:
		return x.arg(v, 0).Mul(x.arg(v, 1))
	case ir.OpDiv:
		return x.arg(v, 0).Div(x.arg(v, 1))
	case ir.OpMod:
		return x.arg(v, 0).Mod(x.arg(v, 1))
	case ir.OpLsh:
		return x.arg(v, 0).Lsh(x.arg(v, 1))
	case ir.OpRsh:
		return x.arg(v, 0).Rsh(x.arg(v, 1))
	case ir.OpAnd:
		return x.arg(v, 0).And(x.arg(v, 1))
	case ir.OpOr:
		return x.arg(v, 0).Or(x.arg(v, 1))
	case ir.OpXor:
		return x.arg(v, 0).Xor(x.arg(v, 1))
	case ir.OpNeg:
		return x.arg(v, 0).Neg()
	case ir.OpAbs:
		return x.arg(v, 0).Abs()
	case ir.OpMin:
		return x.arg(v, 0).Min2(x.arg(v, 1))
	case ir.OpMax:
		return x.arg(v, 0).Max2(x.arg(v, 1))
	case ir.OpNot:
		return x.arg(v, 0).Not()
	case ir.OpConv:
		return x.arg(v, 0).Cast(v.Type)
	case ir.OpSelect:
		return x.extractSelect(v)
	case ir.OpEq, ir.OpNeq, ir.OpLess, ir.OpLeq, ir.OpGreater, ir.OpGeq:
		switch CompareRanges(v.Op, x.arg(v, 0), x.arg(v, 1)) {
		case True:
			return Singleton(ir.Bool, NewZ(1))
		case False:
			return Singleton(ir.Bool, NewZ(0))
		default:
			return NewRange(ir.Bool, NewZ(0), NewZ(1))
		}
	}
	return VaryingFor(v.Type)
}

func (x *Extractor) arg(v *ir.Value, i int) VRange {
	return x.src.RangeOf(v.Args[i])
}

// extractPhi merges the incoming ranges of a phi, skipping edges the driver
// has not seen executable. A merge with no live inputs is unreachable and
// stays Undefined.
func (x *Extractor) extractPhi(v *ir.Value) VRange {
	r := UndefinedFor(v.Type)
	for i, a := range v.Args {
		if x.reachable != nil && !x.reachable(v.Block.PredEdge(i)) {
			continue
		}
		r = r.Union(x.src.RangeOf(a))
	}
	return r
}

// extractSigma narrows the argument's range by what the controlling branch
// condition implies along the edge the sigma lives on.
func (x *Extractor) extractSigma(v *ir.Value) VRange {
	r := x.src.RangeOf(v.Args[0])
	b := v.Block
	if len(b.Preds) != 1 {
		return r
	}
	pred := b.Preds[0]
	if pred.Kind != ir.BlockIf || pred.Control == nil {
		return r
	}
	taken := len(pred.Succs) > 0 && pred.Succs[0] == b
	if implied, ok := impliedRange(x.src, pred.Control, v.Args[0], taken); ok {
		r = r.Intersect(implied)
	}
	return r
}

// extractSelect handles a ternary: if the condition is decided, only the
// live arm contributes; otherwise both arms merge. An arm whose range is
// Undefined is statically unreachable and drops out of the merge.
func (x *Extractor) extractSelect(v *ir.Value) VRange {
	cond := x.arg(v, 0)
	if k, ok := cond.IsSingleton(); ok {
		if k.Sign() != 0 {
			return x.arg(v, 1)
		}
		return x.arg(v, 2)
	}
	return x.arg(v, 1).Union(x.arg(v, 2))
}
