package vrp

import (
	"fmt"
	"io"

	"golang.org/x/exp/slices"

	"github.com/irtools/rangeprop/ir"
)

// DumpAllValueRanges writes one line per value with its current range and
// equivalence set, ordered by value ID. The format is line-oriented text
// meant for test verification and debugging, not a stable interface.
func (s *Store) DumpAllValueRanges(w io.Writer) {
	var vals []*ir.Value
	s.fn.AllValues(func(v *ir.Value) { vals = append(vals, v) })
	slices.SortFunc(vals, func(a, b *ir.Value) int { return a.ID - b.ID })

	for _, v := range vals {
		fmt.Fprintf(w, "%s: %s", v.Name(), s.Get(v))
		if e := s.Equivs(v); e != nil && !e.IsEmpty() {
			ids := e.AppendTo(nil)
			fmt.Fprintf(w, "  EQUIVALENCES: {")
			for _, id := range ids {
				fmt.Fprintf(w, " v%d", id)
			}
			fmt.Fprintf(w, " } (%d elements)", len(ids))
		}
		fmt.Fprintln(w)
	}
}
