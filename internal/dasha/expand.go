package dasha

import (
	"slices"
	"time"
)

// DriftPolicy decides what happens to the remainder left when floored child
// durations do not add up to the parent's duration.
type DriftPolicy string

const (
	// DriftAbsorb stretches the last child of each subdivision to the parent's end.
	DriftAbsorb DriftPolicy = "absorb"
	// DriftPreserve keeps floored durations as-is; the tail of the parent stays uncovered.
	DriftPreserve DriftPolicy = "preserve"
)

const DefaultGranularity = time.Second

// Expander subdivides periods proportionally across a System's lord cycle.
// A child's length is floor(parentUnits * lordYears / totalYears) units of
// Granularity, and each subdivision opens with the parent's own lord.
type Expander struct {
	System      System
	Granularity time.Duration
	Drift       DriftPolicy
	Depth       int
}

func NewExpander(sys System) Expander {
	return Expander{
		System:      sys,
		Granularity: DefaultGranularity,
		Drift:       DriftAbsorb,
		Depth:       MaxDepth,
	}
}

// ExpandHierarchy expands Maha periods into all five Vimshottari levels.
func ExpandHierarchy(level1 []Block) *Hierarchy {
	return NewExpander(Vimshottari()).Expand(level1)
}

func (e Expander) withDefaults() Expander {
	if len(e.System.lords) == 0 {
		e.System = Vimshottari()
	}
	if e.Granularity <= 0 {
		e.Granularity = DefaultGranularity
	}
	if e.Drift != DriftPreserve {
		e.Drift = DriftAbsorb
	}
	if e.Depth <= 0 || e.Depth > MaxDepth {
		e.Depth = MaxDepth
	}
	return e
}

// Subdivide returns the next-level periods of parent. A parent whose lord is
// not part of the cycle has no children.
func (e Expander) Subdivide(parent Block) []Block {
	e = e.withDefaults()
	start, ok := e.System.indexOf(parent.RulingLord)
	if !ok || !parent.Start.Before(parent.End) {
		return nil
	}
	units := int64(parent.Duration() / e.Granularity)
	total := int64(e.System.total)
	n := len(e.System.lords)
	prefix := lordPath(parent)

	out := make([]Block, 0, n)
	cursor := parent.Start
	for i := 0; i < n; i++ {
		lord := e.System.lords[(start+i)%n]
		years := int64(lord.Years)
		// floor(units*years/total) without overflowing for fine granularities.
		childUnits := (units/total)*years + (units%total)*years/total
		end := cursor.Add(time.Duration(childUnits) * e.Granularity)
		if i == n-1 && e.Drift == DriftAbsorb {
			end = parent.End
		}
		if !end.After(cursor) {
			continue
		}
		out = append(out, Block{
			Name:       prefix + "-" + lord.Name,
			RulingLord: lord.Name,
			Start:      cursor,
			End:        end,
			Level:      parent.Level + 1,
			Parent:     parent.RulingLord,
		})
		cursor = end
	}
	return out
}

func lordPath(b Block) string {
	if b.Level <= LevelMaha {
		return b.RulingLord
	}
	return b.Name
}

// Expand eagerly builds the whole hierarchy below level1, which costs
// O(len(level1) * cycle^(Depth-1)) blocks. Use ChainAt when only the path to
// one instant is needed.
func (e Expander) Expand(level1 []Block) *Hierarchy {
	e = e.withDefaults()
	h := newHierarchy(e.System.name)
	for _, b := range normalizeRoots(level1) {
		idx := h.add(b, -1)
		e.expandInto(h, idx)
	}
	return h
}

func (e Expander) expandInto(h *Hierarchy, parent int) {
	pb := h.nodes[parent].block
	if int(pb.Level) >= e.Depth {
		return
	}
	for _, c := range e.Subdivide(pb) {
		idx := h.add(c, parent)
		e.expandInto(h, idx)
	}
}

// ChainAt expands lazily along the path to at and returns the active chain.
// It agrees with FindActiveChain over Expand(level1).
func (e Expander) ChainAt(level1 []Block, at time.Time) Chain {
	e = e.withDefaults()
	var chain Chain
	candidates := normalizeRoots(level1)
	for len(chain) < e.Depth {
		i := slices.IndexFunc(candidates, func(b Block) bool { return b.Contains(at) })
		if i < 0 {
			break
		}
		active := candidates[i]
		chain = append(chain, active)
		candidates = e.Subdivide(active)
	}
	return chain
}

func normalizeRoots(level1 []Block) []Block {
	out := make([]Block, 0, len(level1))
	for _, b := range level1 {
		if !b.Start.Before(b.End) {
			continue
		}
		b.Level = LevelMaha
		b.Parent = ""
		b.Children = nil
		out = append(out, b)
	}
	slices.SortStableFunc(out, compareStart)
	return out
}
