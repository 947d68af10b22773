package vrp

import (
	"math/big"
	"strings"
	"testing"

	"github.com/irtools/rangeprop/ir"
)

// loopFunc builds the canonical counting loop:
//
//	for i := 0; i < 1000; i++ {
//		if i > 1000 { unreachable }
//		_ = i / 4
//	}
//
// The comparison that guards the loop narrows i on the body edge through a
// sigma, which is what proves the inner branch dead and the division
// shiftable.
func loopFunc() (fn *ir.Func, phi, sigma, div *ir.Value, body, dead, latch *ir.Block) {
	fn = ir.NewFunc("loop")
	entry := fn.NewBlock(ir.BlockPlain)
	head := fn.NewBlock(ir.BlockIf)
	body = fn.NewBlock(ir.BlockIf)
	dead = fn.NewBlock(ir.BlockExit)
	latch = fn.NewBlock(ir.BlockPlain)
	exit := fn.NewBlock(ir.BlockExit)

	zero := entry.NewConst(fn, ir.I32, 0)
	thousand := entry.NewConst(fn, ir.I32, 1000)
	four := entry.NewConst(fn, ir.I32, 4)
	one := entry.NewConst(fn, ir.I32, 1)

	phi = head.NewValue(fn, ir.OpPhi, ir.I32, zero)
	cond := head.NewValue(fn, ir.OpLess, ir.Bool, phi, thousand)
	head.SetControl(cond)

	sigma = body.NewValue(fn, ir.OpSigma, ir.I32, phi)
	over := body.NewValue(fn, ir.OpGreater, ir.Bool, sigma, thousand)
	body.SetControl(over)

	div = latch.NewValue(fn, ir.OpDiv, ir.I32, sigma, four)
	next := latch.NewValue(fn, ir.OpAdd, ir.I32, sigma, one)

	fn.AddEdge(entry, head)
	fn.AddEdge(head, body) // taken: i < 1000
	fn.AddEdge(head, exit)
	fn.AddEdge(body, dead) // taken: i > 1000
	fn.AddEdge(body, latch)
	fn.AddEdge(latch, head) // backedge
	phi.Args = append(phi.Args, next)

	head.Loop = head
	body.Loop = head
	latch.Loop = head
	return fn, phi, sigma, div, body, dead, latch
}

func TestSolverLoop(t *testing.T) {
	fn, phi, sigma, div, body, dead, latch := loopFunc()
	s := NewSolver(fn, nil, Options{})
	n := s.Run(fn)

	st := s.Store()
	if got := st.Get(phi); !got.Equal(rng(ir.I32, 0, 1000)) {
		t.Errorf("loop counter range is %s, want [0, 1000]", got)
	}
	if got := st.Get(sigma); !got.Equal(rng(ir.I32, 0, 999)) {
		t.Errorf("guarded counter range is %s, want [0, 999]", got)
	}

	// i in [0, 999] decides i > 1000: the inner branch folds and its taken
	// edge goes away, demoting the block to a plain jump into the latch.
	if body.Kind != ir.BlockPlain || len(body.Succs) != 1 || body.Succs[0] != latch {
		t.Errorf("inner branch not folded: kind %s with %d successors", body.Kind, len(body.Succs))
	}
	if len(dead.Preds) != 0 {
		t.Error("unreachable block still has predecessors")
	}

	// i is non-negative, so i / 4 strength-reduces to a shift.
	if div.Op != ir.OpRsh {
		t.Errorf("division rewritten to %s, want right shift", div.Op)
	}

	// One rewrite plus one folded branch.
	if n != 2 {
		t.Errorf("Run reported %d simplifications, want 2", n)
	}
}

func TestSolverLoopTrace(t *testing.T) {
	fn, _, _, _, _, _, _ := loopFunc()
	var buf strings.Builder
	s := NewSolver(fn, nil, Options{Trace: &buf})
	s.Run(fn)

	out := buf.String()
	for _, want := range []string{"folded to constant", ">> 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace output missing %q:\n%s", want, out)
		}
	}
}

func TestSolverNarrowsWidenedCounter(t *testing.T) {
	fn, phi, sigma, div, _, dead, _ := loopFunc()
	// A tiny revisit budget forces widening long before the counter
	// reaches its bound. The widened counter must land on the comparison
	// constant rather than the type limit, keep its lower bound through
	// the increment on the backedge, and narrow back to the exact loop
	// range.
	s := NewSolver(fn, nil, Options{WidenAfter: 2})
	s.Run(fn)

	st := s.Store()
	if got := st.Get(phi); !got.Equal(rng(ir.I32, 0, 1000)) {
		t.Errorf("widened loop counter range is %s, want [0, 1000]", got)
	}
	if got := st.Get(sigma); !got.Equal(rng(ir.I32, 0, 999)) {
		t.Errorf("guarded counter range is %s, want [0, 999]", got)
	}
	// The counter staying non-negative is what licenses the shift.
	if div.Op != ir.OpRsh {
		t.Errorf("division rewritten to %s, want right shift", div.Op)
	}
	if len(dead.Preds) != 0 {
		t.Error("overflow check not proved dead after widening")
	}
}

func TestSolverPrunesSwitch(t *testing.T) {
	fn := ir.NewFunc("switch")
	sw := fn.NewBlock(ir.BlockSwitch)
	five := sw.NewConst(fn, ir.I32, 5)
	sw.SetControl(five)
	fn.AddEdge(sw, fn.NewBlock(ir.BlockExit)) // default
	var targets []*ir.Block
	for _, label := range []int64{1, 5, 9} {
		tgt := fn.NewBlock(ir.BlockExit)
		targets = append(targets, tgt)
		fn.AddEdge(sw, tgt)
		sw.Cases = append(sw.Cases, ir.SwitchCase{Value: big.NewInt(label)})
	}

	s := NewSolver(fn, nil, Options{})
	n := s.Run(fn)
	if n != 1 {
		t.Errorf("Run reported %d simplifications, want 1 pruned switch", n)
	}
	// A control pinned to one label leaves a single successor, which
	// demotes the switch to a plain jump.
	if sw.Kind != ir.BlockPlain || len(sw.Succs) != 1 || sw.Succs[0] != targets[1] {
		t.Errorf("switch not pruned to its matched target: kind %s with %d successors",
			sw.Kind, len(sw.Succs))
	}
}

func TestSolverSkipsUnreachableCode(t *testing.T) {
	fn := ir.NewFunc("deadcode")
	entry := fn.NewBlock(ir.BlockIf)
	taken := fn.NewBlock(ir.BlockExit)
	untaken := fn.NewBlock(ir.BlockExit)

	truth := entry.NewConst(fn, ir.Bool, 1)
	entry.SetControl(truth)
	// The dead arm contains a division the simplifier would rewrite if it
	// ever looked at it.
	x := untaken.NewValue(fn, ir.OpParam, ir.U32)
	deadDiv := untaken.NewValue(fn, ir.OpDiv, ir.U32, x, untaken.NewConst(fn, ir.U32, 4))

	fn.AddEdge(entry, taken)
	fn.AddEdge(entry, untaken)

	s := NewSolver(fn, nil, Options{})
	s.Run(fn)
	if deadDiv.Op != ir.OpDiv {
		t.Error("statement in an unreachable block was rewritten")
	}
	if len(untaken.Preds) != 0 {
		t.Error("dead edge not removed")
	}
}

// constOracle returns a fixed bound for one value.
type constOracle struct {
	v *ir.Value
	r VRange
}

func (o constOracle) Bound(loop *ir.Block, v *ir.Value) (VRange, bool) {
	if v == o.v {
		return o.r, true
	}
	return VRange{}, false
}

func TestSolverUsesEvolutionOracle(t *testing.T) {
	fn := ir.NewFunc("oracle")
	b := fn.NewBlock(ir.BlockExit)
	b.Loop = b
	p := b.NewValue(fn, ir.OpParam, ir.I32)

	s := NewSolver(fn, constOracle{v: p, r: rng(ir.I32, 0, 10)}, Options{})
	s.Solve()
	if got := s.Store().Get(p); !got.Equal(rng(ir.I32, 0, 10)) {
		t.Errorf("oracle-bounded value has range %s, want [0, 10]", got)
	}
}

func TestSolverRecordsSigmaEquivalence(t *testing.T) {
	fn := ir.NewFunc("equiv")
	entry := fn.NewBlock(ir.BlockIf)
	then := fn.NewBlock(ir.BlockExit)
	els := fn.NewBlock(ir.BlockExit)

	x := entry.NewValue(fn, ir.OpParam, ir.I32)
	y := entry.NewValue(fn, ir.OpParam, ir.I32)
	cond := entry.NewValue(fn, ir.OpEq, ir.Bool, x, y)
	entry.SetControl(cond)
	fn.AddEdge(entry, then)
	fn.AddEdge(entry, els)
	sig := then.NewValue(fn, ir.OpSigma, ir.I32, x)

	s := NewSolver(fn, nil, Options{})
	s.Solve()
	if !s.Store().Equivalent(sig, y) {
		t.Error("sigma on the equality edge not recorded equivalent to the other operand")
	}
}
