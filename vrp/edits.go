package vrp

import (
	"fmt"
	"math/big"
	"sort"

	"golang.org/x/tools/container/intsets"

	"github.com/irtools/rangeprop/ir"
)

// Mutator is the external IR-mutation interface the engine funnels every
// write through. ir.Func implements it; hosts with their own IR provide an
// adapter.
type Mutator interface {
	RemoveEdge(e ir.Edge)
	UpdateSwitch(b *ir.Block, cases []ir.SwitchCase)
	ReplaceValue(v *ir.Value, op ir.Op, args ...*ir.Value)
	MakeConst(b *ir.Block, t ir.NumType, n *big.Int) *ir.Value
}

// EditQueue accumulates structural edits decided during a traversal and
// applies them in one batch afterwards, so the graph is never mutated while
// it is being walked. Deciding and applying are decoupled on purpose:
// structural edits invalidate traversal order and any live iterator over
// the CFG.
type EditQueue struct {
	st *Store

	edges   []ir.Edge
	edgeSet intsets.Sparse

	switches []switchUpdate
	switchAt map[*ir.Block]int
}

type switchUpdate struct {
	block *ir.Block
	cases []ir.SwitchCase
}

func NewEditQueue(st *Store) *EditQueue {
	return &EditQueue{st: st, switchAt: map[*ir.Block]int{}}
}

// Queuing the same edge twice is a no-op, not an error: several rules may
// independently find the same edge dead.
func (q *EditQueue) QueueRemoveEdge(e ir.Edge) {
	if q.edgeSet.Insert(edgeKey(e)) {
		q.edges = append(q.edges, e)
	}
}

// QueueUpdateSwitch queues a case-vector replacement. Re-queuing the same
// switch replaces the pending vector.
func (q *EditQueue) QueueUpdateSwitch(b *ir.Block, cases []ir.SwitchCase) {
	if i, ok := q.switchAt[b]; ok {
		q.switches[i].cases = cases
		return
	}
	q.switchAt[b] = len(q.switches)
	q.switches = append(q.switches, switchUpdate{block: b, cases: cases})
}

func (q *EditQueue) Empty() bool { return len(q.edges) == 0 && len(q.switches) == 0 }

func (q *EditQueue) Len() int { return len(q.edges) + len(q.switches) }

// Flush applies all queued edits: edges first, then switch rewrites, since
// the case vectors queued for a switch assume its dead edges are gone.
// Edits reflect one fixed snapshot of the lattice, so flushing before
// propagation is complete is a usage error and panics.
func (q *EditQueue) Flush(m Mutator) {
	if !q.st.Complete() {
		panic("vrp: Flush before MarkComplete")
	}
	// Within a block, later successor indexes must go first, or earlier
	// removals would shift them.
	sort.SliceStable(q.edges, func(i, j int) bool {
		if q.edges[i].From != q.edges[j].From {
			return q.edges[i].From.ID < q.edges[j].From.ID
		}
		return q.edges[i].Index > q.edges[j].Index
	})
	for _, e := range q.edges {
		m.RemoveEdge(e)
	}
	for _, su := range q.switches {
		m.UpdateSwitch(su.block, su.cases)
	}
	q.edges = nil
	q.edgeSet.Clear()
	q.switches = nil
	q.switchAt = map[*ir.Block]int{}
}

// Close asserts the queue was flushed. Tearing down a pass with edits still
// queued would silently drop decided rewrites, so it is treated as a driver
// bug.
func (q *EditQueue) Close() {
	if !q.Empty() {
		panic(fmt.Sprintf("vrp: edit queue torn down with %d pending edits", q.Len()))
	}
}

// edgeKey packs an edge into a dense int for the idempotence set. Successor
// lists are tiny; 16 bits of index is plenty.
func edgeKey(e ir.Edge) int {
	return e.From.ID<<16 | e.Index
}
