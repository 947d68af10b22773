package vrp

import (
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"github.com/irtools/rangeprop/ir"
)

// Options configures a Solver.
type Options struct {
	// WidenAfter is the number of revisits a value gets before its moving
	// bounds are widened. Guards against slowly creeping loop bounds; the
	// narrowing passes claw precision back.
	WidenAfter int

	// Rules restricts the simplifier catalog; nil enables every rule.
	Rules map[string]bool

	// Trace, if set, receives line-oriented notes about folded branches
	// and fired rewrites.
	Trace io.Writer

	// NarrowPasses is the number of tightening sweeps run after the
	// widening fixpoint.
	NarrowPasses int
}

func (o Options) withDefaults() Options {
	if o.WidenAfter <= 0 {
		o.WidenAfter = 16
	}
	if o.NarrowPasses <= 0 {
		o.NarrowPasses = 2
	}
	return o
}

// Solver drives range propagation over one function to a fixpoint: a
// worklist of control-flow edges and SSA values, in the style of sparse
// conditional propagation. It owns the store and the edit queue for the
// duration of the pass.
type Solver struct {
	fn   *ir.Func
	opts Options

	st  *Store
	x   *Extractor
	ev  *Evaluator
	sim *Simplifier
	q   *EditQueue

	defUse   map[*ir.Value][]*ir.Value
	execEdge map[int]bool
	reached  []bool
	visits   []int
	jumps    []Z

	flowWork []ir.Edge
	ssaWork  []*ir.Value
}

func NewSolver(fn *ir.Func, oracle EvolutionOracle, opts Options) *Solver {
	opts = opts.withDefaults()
	st := NewStore(fn)
	src := st.RangesWithEquiv()
	s := &Solver{
		fn:       fn,
		opts:     opts,
		st:       st,
		x:        NewExtractor(src, oracle),
		ev:       NewEvaluator(st, src),
		q:        NewEditQueue(st),
		execEdge: map[int]bool{},
		reached:  make([]bool, fn.NumBlocks()),
		visits:   make([]int, fn.NumValues()),
	}
	s.x.SetReachable(s.edgeExecutable)
	s.sim = NewSimplifier(src, s.ev, s.q)
	s.sim.EnableRules(opts.Rules)
	s.sim.SetTrace(s.tracef)
	return s
}

func (s *Solver) Store() *Store     { return s.st }
func (s *Solver) Queue() *EditQueue { return s.q }

func (s *Solver) tracef(format string, args ...interface{}) {
	if s.opts.Trace != nil {
		fmt.Fprintf(s.opts.Trace, format+"\n", args...)
	}
}

func (s *Solver) edgeExecutable(e ir.Edge) bool { return s.execEdge[edgeKey(e)] }

func (s *Solver) buildDefUse() {
	s.defUse = map[*ir.Value][]*ir.Value{}
	s.fn.AllValues(func(v *ir.Value) {
		for _, a := range v.Args {
			s.defUse[a] = append(s.defUse[a], v)
		}
	})
}

// Run is the whole pass: propagate to a fixpoint, freeze the store, run one
// simplification sweep, and flush the queued structural edits.
func (s *Solver) Run(m Mutator) int {
	s.Solve()
	n := s.SimplifyAll(m)
	s.q.Flush(m)
	s.q.Close()
	return n
}

// Solve propagates ranges until no store entry changes, then freezes the
// store. Safe to call once per solver.
func (s *Solver) Solve() {
	s.buildDefUse()
	s.harvestJumps()

	entry := s.fn.Entry()
	s.reached[entry.ID] = true
	s.visitBlock(entry)

	for len(s.flowWork) > 0 || len(s.ssaWork) > 0 {
		for len(s.flowWork) > 0 {
			e := s.flowWork[0]
			s.flowWork = s.flowWork[1:]
			k := edgeKey(e)
			if s.execEdge[k] {
				continue
			}
			s.execEdge[k] = true
			dest := e.To()
			if !s.reached[dest.ID] {
				s.reached[dest.ID] = true
				s.visitBlock(dest)
			} else {
				// A new path into a merge: recompute only its phis.
				for _, v := range dest.Values {
					if v.Op == ir.OpPhi {
						s.visitValue(v)
					}
				}
				s.pushFlowOut(dest)
			}
		}
		for len(s.ssaWork) > 0 {
			v := s.ssaWork[0]
			s.ssaWork = s.ssaWork[1:]
			if s.reached[v.Block.ID] {
				s.visitValue(v)
			}
		}
	}

	s.narrow()
	s.st.MarkComplete()
}

func (s *Solver) visitBlock(b *ir.Block) {
	for _, v := range b.Values {
		s.visitValue(v)
	}
	s.pushFlowOut(b)
}

// visitValue recomputes one value's range and, if the stored range moved,
// queues its users and re-derives its block's outgoing flow.
func (s *Solver) visitValue(v *ir.Value) {
	r := s.x.Extract(v)

	if v.Op == ir.OpPhi {
		// Merge-stability shortcut: if the executable in-edge count is
		// unchanged since the last visit and the merged range agrees with
		// what is stored, the merge is a no-op.
		live := 0
		for i := range v.Args {
			if s.edgeExecutable(v.Block.PredEdge(i)) {
				live++
			}
		}
		if live == s.st.PhiEdgeCount(v) && r.Equal(s.st.Get(v)) {
			return
		}
		s.st.SetPhiEdgeCount(v, live)
	}

	if v.Op == ir.OpSigma {
		s.recordSigmaEquiv(v)
	}

	s.visits[v.ID]++
	if s.visits[v.ID] > s.opts.WidenAfter {
		r = s.widen(v, r)
	}
	if !s.st.UpdateOnRevisit(v, r) {
		return
	}
	for _, u := range s.defUse[v] {
		if s.reached[u.Block.ID] {
			s.ssaWork = append(s.ssaWork, u)
		}
	}
	if v.Block.Control == v || contains(v.Block.Control, v) {
		s.pushFlowOut(v.Block)
	}
}

func contains(ctrl, v *ir.Value) bool {
	if ctrl == nil {
		return false
	}
	for _, a := range ctrl.Args {
		if a == v {
			return true
		}
	}
	return false
}

// harvestJumps collects the constants branch conditions and switch labels
// compare against. Widening lands on these before giving up and going to
// the type limit, so a counter bounded by a comparison keeps its bound
// instead of overshooting into overflow territory.
func (s *Solver) harvestJumps() {
	var js []Z
	s.fn.AllValues(func(v *ir.Value) {
		if !v.Op.IsComparison() {
			return
		}
		for _, a := range v.Args {
			if a.Op == ir.OpConst && !a.Type.Float {
				js = append(js, NewBigZ(a.AuxInt))
			}
		}
	})
	for _, b := range s.fn.Blocks {
		for _, c := range b.Cases {
			js = append(js, NewBigZ(c.Value))
		}
	}
	slices.SortFunc(js, Z.Cmp)
	s.jumps = slices.CompactFunc(js, func(a, b Z) bool { return a.Cmp(b) == 0 })
}

// widen pushes a still-moving bound outward, trading precision for
// guaranteed termination once a value has been revisited often. Bounds land
// on the next harvested jump constant first and reach the type limit only
// past the last one.
func (s *Solver) widen(v *ir.Value, r VRange) VRange {
	old := s.st.Get(v)
	if r.Kind != Range || old.Kind != Range {
		return VaryingFor(v.Type)
	}
	lo, hi := r.Min, r.Max
	if lo.Cmp(old.Min) == -1 {
		lo = s.jumpBelow(lo)
	}
	if hi.Cmp(old.Max) == 1 {
		hi = s.jumpAbove(hi)
	}
	return NewRange(v.Type, lo, hi)
}

// jumpAbove returns the smallest jump constant at or above z, or +INF.
func (s *Solver) jumpAbove(z Z) Z {
	for _, j := range s.jumps {
		if j.Cmp(z) >= 0 {
			return j
		}
	}
	return PInf
}

// jumpBelow returns the largest jump constant at or below z, or -INF.
func (s *Solver) jumpBelow(z Z) Z {
	for i := len(s.jumps) - 1; i >= 0; i-- {
		if s.jumps[i].Cmp(z) <= 0 {
			return s.jumps[i]
		}
	}
	return NInf
}

// recordSigmaEquiv notes the equivalence a sigma's controlling equality
// proves on its edge: after 'if x == y', both sides hold the same value in
// the taken branch.
func (s *Solver) recordSigmaEquiv(v *ir.Value) {
	b := v.Block
	if len(b.Preds) != 1 {
		return
	}
	pred := b.Preds[0]
	if pred.Kind != ir.BlockIf || pred.Control == nil {
		return
	}
	taken := len(pred.Succs) > 0 && pred.Succs[0] == b
	if x, y, ok := CondEquates(pred.Control, taken); ok {
		switch v.Args[0] {
		case x:
			s.st.AddEquiv(v, y)
		case y:
			s.st.AddEquiv(v, x)
		}
	}
}

// pushFlowOut queues the successor edges the block's control allows under
// current range knowledge. Undecided controls keep every edge live.
func (s *Solver) pushFlowOut(b *ir.Block) {
	switch b.Kind {
	case ir.BlockExit:
	case ir.BlockIf:
		switch s.ev.EvaluateCond(b.Control) {
		case True:
			s.flowWork = append(s.flowWork, ir.Edge{From: b, Index: 0})
		case False:
			s.flowWork = append(s.flowWork, ir.Edge{From: b, Index: 1})
		default:
			s.flowWork = append(s.flowWork,
				ir.Edge{From: b, Index: 0},
				ir.Edge{From: b, Index: 1})
		}
	case ir.BlockSwitch:
		s.pushSwitchOut(b)
	default:
		for i := range b.Succs {
			s.flowWork = append(s.flowWork, ir.Edge{From: b, Index: i})
		}
	}
}

func (s *Solver) pushSwitchOut(b *ir.Block) {
	cr := s.st.RangesWithEquiv().RangeOf(b.Control).Normalize()
	matched := false
	for i, c := range b.Cases {
		label := NewBigZ(c.Value)
		if cr.Contains(label) {
			s.flowWork = append(s.flowWork, ir.Edge{From: b, Index: i + 1})
			if k, ok := cr.IsSingleton(); ok && k.Cmp(label) == 0 {
				matched = true
			}
		}
	}
	if !matched {
		s.flowWork = append(s.flowWork, ir.Edge{From: b, Index: 0})
	}
}

// narrow claws back precision the widening gave up: re-extract every
// reachable value in order and let the store accept strictly tighter
// results. Each pass is monotone downward, so a couple of sweeps suffice.
func (s *Solver) narrow() {
	for pass := 0; pass < s.opts.NarrowPasses; pass++ {
		changed := false
		for _, b := range s.fn.Blocks {
			if !s.reached[b.ID] {
				continue
			}
			for _, v := range b.Values {
				if s.st.Set(v, s.x.Extract(v)) {
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}
}

// SimplifyAll runs one simplification sweep over the reachable blocks with
// the final ranges: statements are rewritten in place, decided branches
// queue their dead edge, switches queue their pruned case vectors. Returns
// the number of rewrites and folds.
func (s *Solver) SimplifyAll(m Mutator) int {
	if !s.st.Complete() {
		panic("vrp: SimplifyAll before Solve")
	}
	n := 0
	for _, b := range s.fn.Blocks {
		if !s.reached[b.ID] {
			continue
		}
		for _, v := range b.Values {
			if s.sim.Simplify(v, m) {
				n++
			}
		}
		switch b.Kind {
		case ir.BlockIf:
			if dead, ok := s.ev.VisitCond(b); ok {
				s.q.QueueRemoveEdge(dead)
				s.tracef("branch in %s folded to constant, removing %s", b.Name(), dead)
				n++
			}
		case ir.BlockSwitch:
			if s.sim.SimplifySwitch(b, s.q) {
				n++
			}
		}
	}
	return n
}
