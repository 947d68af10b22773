package vrp

import (
	"fmt"

	"golang.org/x/tools/container/intsets"

	"github.com/irtools/rangeprop/ir"
)

// Store holds the current view of range information for every value in one
// function, indexed densely by value ID. It is created at the start of a
// pass and torn down with it; all ranges live in the store's backing slices
// and are released together. The store is the single writer: extractor,
// evaluator and simplifier read snapshots and submit updates through Set and
// UpdateOnRevisit, which centrally enforce the lattice's monotonicity.
type Store struct {
	fn     *ir.Func
	ranges []VRange
	known  []bool // whether ranges[i] was ever written

	// Equivalence sets: variables known to hold the same runtime value
	// along the current path. Lazily allocated.
	equiv []*intsets.Sparse

	// For a phi defining value ID i, phiEdges[i] holds the number of
	// executable incoming edges seen on the last visit, or -1 before the
	// first visit. Used to skip merges whose inputs have stabilized.
	phiEdges []int

	// Propagation completeness. Transitions to true exactly once; after
	// that the store is read-only.
	propagated bool
}

func NewStore(fn *ir.Func) *Store {
	n := fn.NumValues()
	s := &Store{
		fn:       fn,
		ranges:   make([]VRange, n),
		known:    make([]bool, n),
		equiv:    make([]*intsets.Sparse, n),
		phiEdges: make([]int, n),
	}
	for i := range s.phiEdges {
		s.phiEdges[i] = -1
	}
	return s
}

// Get returns the current range of v. A value never yet visited has no
// information and reads as Varying; so does a value created after the
// store, such as a constant materialized by a rewrite.
func (s *Store) Get(v *ir.Value) VRange {
	if v.ID >= len(s.ranges) || !s.known[v.ID] {
		return VaryingFor(v.Type)
	}
	return s.ranges[v.ID]
}

// Set records a range for v. Outside the first write for a value, the store
// only accepts a strictly more precise range; anything else is dropped. The
// return value reports whether the stored range changed, which the driver
// uses to decide whether v's users must be revisited.
func (s *Store) Set(v *ir.Value, r VRange) bool {
	s.checkOpen("Set")
	if !s.known[v.ID] {
		s.known[v.ID] = true
		s.ranges[v.ID] = r
		return true
	}
	old := s.ranges[v.ID]
	if r.Equal(old) {
		return false
	}
	if !r.SubsetOf(old) {
		return false
	}
	s.ranges[v.ID] = r
	return true
}

// UpdateOnRevisit merges r into v's stored range with the lattice merge
// instead of overwriting, so revisits in the fixpoint loop only ever move a
// range up the lattice. Termination follows from the lattice's finite
// height.
func (s *Store) UpdateOnRevisit(v *ir.Value, r VRange) bool {
	s.checkOpen("UpdateOnRevisit")
	if !s.known[v.ID] {
		s.known[v.ID] = true
		s.ranges[v.ID] = r
		return true
	}
	merged := s.ranges[v.ID].Union(r)
	if merged.Equal(s.ranges[v.ID]) {
		return false
	}
	s.ranges[v.ID] = merged
	return true
}

// MarkComplete freezes the store. After this, Get is final and writes
// panic.
func (s *Store) MarkComplete() { s.propagated = true }

func (s *Store) Complete() bool { return s.propagated }

func (s *Store) checkOpen(op string) {
	if s.propagated {
		panic(fmt.Sprintf("vrp: %s after MarkComplete", op))
	}
}

// Reset prepares the store for reuse on the same function: ranges,
// equivalences and phi counts are purged and the completeness flag is
// cleared.
func (s *Store) Reset() {
	for i := range s.ranges {
		s.ranges[i] = VRange{}
		s.known[i] = false
		s.equiv[i] = nil
		s.phiEdges[i] = -1
	}
	s.propagated = false
}

// AddEquiv records that v and w hold the same runtime value. The relation
// is kept symmetric.
func (s *Store) AddEquiv(v, w *ir.Value) {
	s.checkOpen("AddEquiv")
	if v == w {
		return
	}
	if s.equiv[v.ID] == nil {
		s.equiv[v.ID] = new(intsets.Sparse)
	}
	if s.equiv[w.ID] == nil {
		s.equiv[w.ID] = new(intsets.Sparse)
	}
	s.equiv[v.ID].Insert(w.ID)
	s.equiv[w.ID].Insert(v.ID)
}

// Equivalent reports whether v and w are linked through the equivalence
// sets.
func (s *Store) Equivalent(v, w *ir.Value) bool {
	if v == w {
		return true
	}
	e := s.Equivs(v)
	return e != nil && e.Has(w.ID)
}

// Equivs returns the equivalence set of v, or nil.
func (s *Store) Equivs(v *ir.Value) *intsets.Sparse {
	if v.ID >= len(s.equiv) {
		return nil
	}
	return s.equiv[v.ID]
}

// PhiEdgeCount returns the executable-edge count recorded for a phi on its
// last visit, or -1.
func (s *Store) PhiEdgeCount(phi *ir.Value) int { return s.phiEdges[phi.ID] }

func (s *Store) SetPhiEdgeCount(phi *ir.Value, n int) {
	s.checkOpen("SetPhiEdgeCount")
	s.phiEdges[phi.ID] = n
}

// Ranges returns the plain range lookup: exactly the stored range per
// value.
func (s *Store) Ranges() RangeSource { return storeSource{s} }

// RangesWithEquiv returns the equivalence-aware lookup: the stored range of
// v intersected with the ranges of everything v is known equal to.
func (s *Store) RangesWithEquiv() RangeSource { return equivSource{s} }

// RangeSource is the capability the extractor and evaluator read ranges
// through. Two implementations exist: a plain store lookup and a
// context-aware lookup that consults equivalences.
type RangeSource interface {
	RangeOf(v *ir.Value) VRange
}

type storeSource struct{ s *Store }

func (src storeSource) RangeOf(v *ir.Value) VRange { return src.s.Get(v) }

type equivSource struct{ s *Store }

func (src equivSource) RangeOf(v *ir.Value) VRange {
	r := src.s.Get(v)
	e := src.s.Equivs(v)
	if e == nil {
		return r
	}
	for _, id := range e.AppendTo(nil) {
		if src.s.known[id] && src.s.ranges[id].Type == v.Type {
			r = r.Intersect(src.s.ranges[id])
		}
	}
	return r
}
