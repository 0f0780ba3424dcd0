package state

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats summarizes one Manager's interning pool, for knightc's --stats
// output.
type Stats struct {
	InternedStates int
	FoldingBuckets int
	FreeListSize   int
}

// Stats reports m's current pool occupancy.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, bucket := range m.pool {
		n += len(bucket)
	}
	return Stats{InternedStates: n, FoldingBuckets: len(m.pool), FreeListSize: len(m.freeList)}
}

func (s Stats) String() string {
	return fmt.Sprintf("%s interned states across %s folding buckets (%s free-list slots)",
		humanize.Comma(int64(s.InternedStates)), humanize.Comma(int64(s.FoldingBuckets)), humanize.Comma(int64(s.FreeListSize)))
}
