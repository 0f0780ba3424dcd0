package domain

import (
	"fmt"
	"sort"
	"strings"

	"knight/internal/region"
)

// stmtKey identifies a statement for the per-statement pointer maps;
// the engine only needs identity, not the statement's contents.
type stmtKey uint64

// PointerInfo bundles the four maps of spec §3.7: region -> points-to
// set, stmt -> (region -> points-to set), region -> alias set, and
// stmt -> (region -> alias set).
type PointerInfo struct {
	bottom bool

	pointsTo     map[*region.Region]map[*region.Region]bool
	stmtPointsTo map[stmtKey]map[*region.Region]map[*region.Region]bool
	aliases      map[*region.Region]map[*region.Region]bool
	stmtAliases  map[stmtKey]map[*region.Region]map[*region.Region]bool
}

func NewPointerInfo() *PointerInfo {
	return &PointerInfo{
		pointsTo:     map[*region.Region]map[*region.Region]bool{},
		stmtPointsTo: map[stmtKey]map[*region.Region]map[*region.Region]bool{},
		aliases:      map[*region.Region]map[*region.Region]bool{},
		stmtAliases:  map[stmtKey]map[*region.Region]map[*region.Region]bool{},
	}
}

func (p *PointerInfo) IsTop() bool {
	return !p.bottom && len(p.pointsTo) == 0 && len(p.aliases) == 0 &&
		len(p.stmtPointsTo) == 0 && len(p.stmtAliases) == 0
}

func (p *PointerInfo) IsBottom() bool { return p.bottom }

func (p *PointerInfo) SetToTop() {
	*p = *NewPointerInfo()
}

func (p *PointerInfo) SetToBottom() {
	*p = PointerInfo{bottom: true}
}

func (p *PointerInfo) AddPointsTo(r, target *region.Region) {
	if p.pointsTo == nil {
		p.pointsTo = map[*region.Region]map[*region.Region]bool{}
	}
	if p.pointsTo[r] == nil {
		p.pointsTo[r] = map[*region.Region]bool{}
	}
	p.pointsTo[r][target] = true
}

func (p *PointerInfo) PointsTo(r *region.Region) []*region.Region {
	return sortedRegions(p.pointsTo[r])
}

func (p *PointerInfo) AddAlias(a, b *region.Region) {
	if p.aliases == nil {
		p.aliases = map[*region.Region]map[*region.Region]bool{}
	}
	for _, pair := range [][2]*region.Region{{a, b}, {b, a}} {
		if p.aliases[pair[0]] == nil {
			p.aliases[pair[0]] = map[*region.Region]bool{}
		}
		p.aliases[pair[0]][pair[1]] = true
	}
}

func (p *PointerInfo) Aliases(r *region.Region) []*region.Region {
	return sortedRegions(p.aliases[r])
}

func sortedRegions(m map[*region.Region]bool) []*region.Region {
	out := make([]*region.Region, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func asPointerInfo(other Domain) *PointerInfo {
	o, ok := other.(*PointerInfo)
	if !ok {
		panic("domain: PointerInfo combined with a different domain type")
	}
	return o
}

func mergeRegionSets(dst, src map[*region.Region]map[*region.Region]bool) {
	for k, set := range src {
		if dst[k] == nil {
			dst[k] = map[*region.Region]bool{}
		}
		for r := range set {
			dst[k][r] = true
		}
	}
}

func (p *PointerInfo) JoinWith(other Domain) {
	o := asPointerInfo(other)
	if p.bottom {
		*p = *o.Clone().(*PointerInfo)
		return
	}
	if o.bottom {
		return
	}
	mergeRegionSets(p.pointsTo, o.pointsTo)
	mergeRegionSets(p.aliases, o.aliases)
	for s, m := range o.stmtPointsTo {
		if p.stmtPointsTo[s] == nil {
			p.stmtPointsTo[s] = map[*region.Region]map[*region.Region]bool{}
		}
		mergeRegionSets(p.stmtPointsTo[s], m)
	}
	for s, m := range o.stmtAliases {
		if p.stmtAliases[s] == nil {
			p.stmtAliases[s] = map[*region.Region]map[*region.Region]bool{}
		}
		mergeRegionSets(p.stmtAliases[s], m)
	}
}

// WidenWith: points-to/alias sets only ever grow and are bounded by
// the (finite, front-end-supplied) region universe, so widening
// coincides with join.
func (p *PointerInfo) WidenWith(other Domain) { p.JoinWith(other) }

func (p *PointerInfo) MeetWith(other Domain) {
	o := asPointerInfo(other)
	if p.bottom || o.bottom {
		p.SetToBottom()
		return
	}
	intersectRegionSets(p.pointsTo, o.pointsTo)
	intersectRegionSets(p.aliases, o.aliases)
}

func (p *PointerInfo) NarrowWith(other Domain) { p.MeetWith(other) }

func intersectRegionSets(dst, src map[*region.Region]map[*region.Region]bool) {
	for k, set := range dst {
		osub, ok := src[k]
		if !ok {
			delete(dst, k)
			continue
		}
		for r := range set {
			if !osub[r] {
				delete(set, r)
			}
		}
	}
}

func (p *PointerInfo) Leq(other Domain) bool {
	o := asPointerInfo(other)
	if p.bottom {
		return true
	}
	if o.bottom {
		return false
	}
	return regionSetsSubset(p.pointsTo, o.pointsTo) && regionSetsSubset(p.aliases, o.aliases)
}

func regionSetsSubset(a, b map[*region.Region]map[*region.Region]bool) bool {
	for k, set := range a {
		bsub := b[k]
		for r := range set {
			if !bsub[r] {
				return false
			}
		}
	}
	return true
}

func (p *PointerInfo) Equals(other Domain) bool {
	o := asPointerInfo(other)
	if p.bottom != o.bottom {
		return false
	}
	return p.Leq(o) && o.Leq(p)
}

func (p *PointerInfo) Normalize() {}

func (p *PointerInfo) Clone() Domain {
	if p.bottom {
		return &PointerInfo{bottom: true}
	}
	c := NewPointerInfo()
	mergeRegionSets(c.pointsTo, p.pointsTo)
	mergeRegionSets(c.aliases, p.aliases)
	for s, m := range p.stmtPointsTo {
		c.stmtPointsTo[s] = map[*region.Region]map[*region.Region]bool{}
		mergeRegionSets(c.stmtPointsTo[s], m)
	}
	for s, m := range p.stmtAliases {
		c.stmtAliases[s] = map[*region.Region]map[*region.Region]bool{}
		mergeRegionSets(c.stmtAliases[s], m)
	}
	return c
}

func (p *PointerInfo) Dump() string {
	if p.bottom {
		return "pointer{bottom}"
	}
	var sb strings.Builder
	sb.WriteString("pointer{")
	keys := sortedRegions(toBoolMap(p.pointsTo))
	for i, r := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s->%v", r, p.PointsTo(r))
	}
	sb.WriteString("}")
	return sb.String()
}

func toBoolMap(m map[*region.Region]map[*region.Region]bool) map[*region.Region]bool {
	out := make(map[*region.Region]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}
