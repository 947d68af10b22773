package ir

import (
	"fmt"
	"math/big"
)

// Mutation entry points. The engine decides structural changes but never
// applies them itself; it hands edge removals and switch rewrites back
// through these methods, batched behind its deferred edit queue. Statement
// replacement is the one in-place edit, mirroring how rewrites interleave
// with a traversal while structural edits do not.

// RemoveEdge detaches the Index-th successor edge of e.From, dropping the
// matching predecessor entry and the corresponding argument of every phi in
// the target block. Removing the only remaining out-edge of an If or Switch
// block demotes it to a plain block.
func (f *Func) RemoveEdge(e Edge) {
	from, to := e.From, e.To()
	pi := e.predIndex()

	from.Succs = append(from.Succs[:e.Index], from.Succs[e.Index+1:]...)
	to.Preds = append(to.Preds[:pi], to.Preds[pi+1:]...)
	for _, v := range to.Values {
		if v.Op != OpPhi {
			continue
		}
		v.Args = append(v.Args[:pi], v.Args[pi+1:]...)
		if len(v.Args) == 1 {
			v.Op = OpCopy
		}
	}

	switch from.Kind {
	case BlockIf:
		if len(from.Succs) == 1 {
			from.Kind = BlockPlain
			from.Control = nil
		}
	case BlockSwitch:
		if e.Index > 0 {
			from.Cases = append(from.Cases[:e.Index-1], from.Cases[e.Index:]...)
		}
		if len(from.Succs) == 1 {
			from.Kind = BlockPlain
			from.Control = nil
			from.Cases = nil
		}
	}
}

// UpdateSwitch replaces the case vector of a switch block. The successor
// edges of dropped cases must have been removed first; the new vector has to
// line up with the surviving non-default successors.
func (f *Func) UpdateSwitch(b *Block, cases []SwitchCase) {
	if b.Kind == BlockPlain {
		// Already demoted by edge removal; nothing left to rewrite.
		return
	}
	if b.Kind != BlockSwitch {
		panic(fmt.Sprintf("ir: UpdateSwitch on %s block %s", b.Kind, b.Name()))
	}
	if len(cases) != len(b.Succs)-1 {
		panic(fmt.Sprintf("ir: case vector of length %d for %d non-default successors", len(cases), len(b.Succs)-1))
	}
	b.Cases = cases
}

// ReplaceValue rewrites a statement in place: v keeps its identity and type
// but gets a new operator and operand list.
func (f *Func) ReplaceValue(v *Value, op Op, args ...*Value) {
	v.Op = op
	v.Args = args
	if op != OpConst {
		v.AuxInt = nil
	}
}

// MakeConst materializes an integer constant in b for a rewrite to use as
// an operand.
func (f *Func) MakeConst(b *Block, t NumType, n *big.Int) *Value {
	return b.NewBigConst(f, t, n)
}

// SetConst rewrites v into an integer constant.
func (f *Func) SetConst(v *Value, n int64) {
	v.Op = OpConst
	v.Args = nil
	v.AuxInt = big.NewInt(n)
}
