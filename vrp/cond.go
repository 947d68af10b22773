package vrp

import (
	"fmt"

	"github.com/irtools/rangeprop/ir"
)

// flipCmp mirrors a comparison across its operands: a < b becomes b > a.
func flipCmp(op ir.Op) ir.Op {
	switch op {
	case ir.OpLess:
		return ir.OpGreater
	case ir.OpGreater:
		return ir.OpLess
	case ir.OpLeq:
		return ir.OpGeq
	case ir.OpGeq:
		return ir.OpLeq
	case ir.OpEq, ir.OpNeq:
		return op
	}
	panic(fmt.Sprintf("not a comparison: %s", op))
}

// negateCmp inverts a comparison's truth value: a < b becomes a >= b.
func negateCmp(op ir.Op) ir.Op {
	switch op {
	case ir.OpLess:
		return ir.OpGeq
	case ir.OpGeq:
		return ir.OpLess
	case ir.OpGreater:
		return ir.OpLeq
	case ir.OpLeq:
		return ir.OpGreater
	case ir.OpEq:
		return ir.OpNeq
	case ir.OpNeq:
		return ir.OpEq
	}
	panic(fmt.Sprintf("not a comparison: %s", op))
}

// hullBounds flattens a range to interval bounds within its type window.
func hullBounds(r VRange) (Z, Z) {
	if r.Kind == Range {
		return r.Min, r.Max
	}
	return typeBounds(r.Type)
}

// impliedRange computes the range a comparison imposes on forVar along one
// branch: for 'if a < b', the true edge bounds a by [min, max(b)-1]. ok is
// false if the condition says nothing representable about forVar.
func impliedRange(src RangeSource, cond *ir.Value, forVar *ir.Value, taken bool) (VRange, bool) {
	if !cond.Op.IsComparison() || forVar.Type.Float {
		return VRange{}, false
	}
	op := cond.Op
	var other *ir.Value
	switch forVar {
	case cond.Args[0]:
		other = cond.Args[1]
	case cond.Args[1]:
		other = cond.Args[0]
		op = flipCmp(op)
	default:
		return VRange{}, false
	}
	if !taken {
		op = negateCmp(op)
	}

	or := src.RangeOf(other)
	if or.Kind == Undefined {
		return VRange{}, false
	}
	lo, hi := hullBounds(or)
	t := forVar.Type
	switch op {
	case ir.OpEq:
		return or, true
	case ir.OpNeq:
		if k, ok := or.IsSingleton(); ok {
			return NewAntiRange(t, k, k), true
		}
		return VRange{}, false
	case ir.OpLess:
		return NewRange(t, NInf, hi.Pred()), true
	case ir.OpLeq:
		return NewRange(t, NInf, hi), true
	case ir.OpGreater:
		return NewRange(t, lo.Succ(), PInf), true
	case ir.OpGeq:
		return NewRange(t, lo, PInf), true
	}
	panic("unreachable")
}

// Evaluator decides the truth value of conditions from operand ranges and
// known equivalences.
type Evaluator struct {
	st  *Store
	src RangeSource
}

func NewEvaluator(st *Store, src RangeSource) *Evaluator {
	return &Evaluator{st: st, src: src}
}

// Evaluate reduces op over two operands to a tri-state result. Operands
// that are the same variable, or linked through an equivalence set, resolve
// by operator reflexivity without consulting ranges. Overlapping ranges
// resolve to Unknown; the evaluator never guesses.
func (ev *Evaluator) Evaluate(op ir.Op, x, y *ir.Value) TriState {
	if x == y || ev.st.Equivalent(x, y) {
		if x.Type.Float {
			// x may be NaN, which is not even equal to itself.
			return Unknown
		}
		switch op {
		case ir.OpEq, ir.OpLeq, ir.OpGeq:
			return True
		case ir.OpNeq, ir.OpLess, ir.OpGreater:
			return False
		}
	}
	return CompareRanges(op, ev.src.RangeOf(x), ev.src.RangeOf(y))
}

// EvaluateCond decides a branch condition value: a comparison is evaluated
// structurally, anything else by its boolean range.
func (ev *Evaluator) EvaluateCond(cond *ir.Value) TriState {
	if cond.Op.IsComparison() {
		return ev.Evaluate(cond.Op, cond.Args[0], cond.Args[1])
	}
	if k, ok := ev.src.RangeOf(cond).IsSingleton(); ok {
		if k.Sign() != 0 {
			return True
		}
		return False
	}
	return Unknown
}

// VisitCond evaluates the controlling condition of an If block. If it is
// decided, the edge of the untaken branch is returned for the caller to
// queue for removal; the block is never edited here.
func (ev *Evaluator) VisitCond(b *ir.Block) (dead ir.Edge, ok bool) {
	if b.Kind != ir.BlockIf || b.Control == nil {
		return ir.Edge{}, false
	}
	switch ev.EvaluateCond(b.Control) {
	case True:
		return ir.Edge{From: b, Index: 1}, true
	case False:
		return ir.Edge{From: b, Index: 0}, true
	}
	return ir.Edge{}, false
}

// CondFact is one piece of information a decided branch direction implies:
// along that edge, Var's value lies in R.
type CondFact struct {
	Var *ir.Value
	R   VRange
}

// FactsFromCond lists the ranges implied for the condition's operands along
// one branch of an If. The solver itself narrows through sigma values and
// does not consume these facts; the entry point serves drivers for host IRs
// without SSI form, which carry their own dominance information. Such a
// caller must apply each fact only to code dominated by the chosen edge,
// never speculatively.
func (ev *Evaluator) FactsFromCond(cond *ir.Value, taken bool) []CondFact {
	if !cond.Op.IsComparison() {
		return nil
	}
	var facts []CondFact
	for _, operand := range []*ir.Value{cond.Args[0], cond.Args[1]} {
		if operand.Op == ir.OpConst {
			continue
		}
		if r, ok := impliedRange(ev.src, cond, operand, taken); ok {
			facts = append(facts, CondFact{Var: operand, R: r})
		}
	}
	return facts
}

// CondEquates reports the operand pair a branch direction proves equal:
// x == y taken, or x != y not taken.
func CondEquates(cond *ir.Value, taken bool) (x, y *ir.Value, ok bool) {
	if cond.Op == ir.OpEq && taken || cond.Op == ir.OpNeq && !taken {
		x, y = cond.Args[0], cond.Args[1]
		if x.Op != ir.OpConst && y.Op != ir.OpConst && !x.Type.Float {
			return x, y, true
		}
	}
	return nil, nil, false
}
