package state

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kr/pretty"

	"knight/internal/domain"
)

// Dump renders a terse, human-readable summary of s: one line per
// tracked domain (via that domain's own Dump), followed by region-def
// and stmt-expr counts and the constraint system. Used by knightc's
// --dump-state.
func (s *State) Dump() string {
	if s.IsBottom() {
		return "⊥ (bottom)"
	}
	ids := make([]domain.Id, 0, len(s.domainValues))
	for id := range s.domainValues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "[%s]: %s\n", id, s.domainValues[id].Dump())
	}
	fmt.Fprintf(&b, "region defs: %d, stmt exprs: %d, constraints: %s\n",
		len(s.regionDefs), len(s.stmtSexprs), s.constraints.String())
	return b.String()
}

// DumpVerbose renders s's full internal structure, including the
// region/frame keys behind kr/pretty's reflection-based formatter, for
// --dump-state --verbose.
func (s *State) DumpVerbose() string {
	return fmt.Sprintf("%# v", pretty.Formatter(s))
}
