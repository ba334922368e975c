package dasha

import (
	"fmt"
	"slices"
)

type node struct {
	block    Block
	parent   int
	children []int
}

// Hierarchy stores blocks in an arena in depth-first order. Parent/child links
// are arena indices; the Parent name on each block is informational.
type Hierarchy struct {
	system string
	nodes  []node
	roots  []int
}

func newHierarchy(system string) *Hierarchy {
	return &Hierarchy{system: system}
}

func (h *Hierarchy) add(b Block, parent int) int {
	b.Children = nil
	idx := len(h.nodes)
	h.nodes = append(h.nodes, node{block: b, parent: parent})
	if parent < 0 {
		h.roots = append(h.roots, idx)
	} else {
		h.nodes[parent].children = append(h.nodes[parent].children, idx)
	}
	return idx
}

// FromTree flattens a nested tree, usually one returned by ValidateAndRepair,
// into a hierarchy. Level and Parent are rewritten from the actual nesting.
func FromTree(system string, tree []Block) *Hierarchy {
	h := newHierarchy(system)
	sorted := slices.Clone(tree)
	slices.SortStableFunc(sorted, compareStart)
	for _, b := range sorted {
		h.addTree(b, -1, LevelMaha)
	}
	return h
}

func (h *Hierarchy) addTree(b Block, parent int, depth Level) {
	children := slices.Clone(b.Children)
	b.Level = depth
	b.Parent = ""
	if parent >= 0 {
		b.Parent = h.nodes[parent].block.RulingLord
	}
	idx := h.add(b, parent)
	slices.SortStableFunc(children, compareStart)
	for _, c := range children {
		h.addTree(c, idx, depth+1)
	}
}

func (h *Hierarchy) System() string { return h.system }

func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.nodes)
}

// Blocks returns every block in depth-first order without nested children.
func (h *Hierarchy) Blocks() []Block {
	if h == nil {
		return nil
	}
	out := make([]Block, len(h.nodes))
	for i, n := range h.nodes {
		out[i] = n.block
	}
	return out
}

func (h *Hierarchy) Roots() []Block {
	if h == nil {
		return nil
	}
	out := make([]Block, len(h.roots))
	for i, idx := range h.roots {
		out[i] = h.nodes[idx].block
	}
	return out
}

// AtLevel returns the blocks of one level ordered by start.
func (h *Hierarchy) AtLevel(l Level) []Block {
	var out []Block
	for _, b := range h.Blocks() {
		if b.Level == l {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, compareStart)
	return out
}

// Tree rebuilds the nested form of the hierarchy.
func (h *Hierarchy) Tree() []Block {
	if h == nil {
		return nil
	}
	out := make([]Block, 0, len(h.roots))
	for _, idx := range h.roots {
		out = append(out, h.subtree(idx))
	}
	return out
}

func (h *Hierarchy) subtree(idx int) Block {
	b := h.nodes[idx].block
	for _, c := range h.nodes[idx].children {
		b.Children = append(b.Children, h.subtree(c))
	}
	return b
}

// Check verifies the structural invariants queries rely on: every child lies
// inside its parent, siblings are sorted by start and no two siblings share a
// ruling lord.
func (h *Hierarchy) Check() error {
	if h == nil {
		return nil
	}
	if err := h.checkSiblings(h.roots, nil); err != nil {
		return err
	}
	for i := range h.nodes {
		p := &h.nodes[i]
		if err := h.checkSiblings(p.children, &p.block); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hierarchy) checkSiblings(idxs []int, parent *Block) error {
	lords := make(map[string]struct{}, len(idxs))
	var prev *Block
	for _, idx := range idxs {
		b := &h.nodes[idx].block
		if !b.Start.Before(b.End) {
			return fmt.Errorf("%s: empty or inverted interval", describe(*b))
		}
		if parent != nil {
			if b.Start.Before(parent.Start) || b.End.After(parent.End) {
				return fmt.Errorf("%s: outside parent %s", describe(*b), describe(*parent))
			}
			if b.Level != parent.Level+1 {
				return fmt.Errorf("%s: level %d under level %d parent", describe(*b), b.Level, parent.Level)
			}
			if _, dup := lords[b.RulingLord]; dup {
				return fmt.Errorf("%s: duplicate ruling lord %s among siblings", describe(*parent), b.RulingLord)
			}
			lords[b.RulingLord] = struct{}{}
		}
		if prev != nil && b.Start.Before(prev.Start) {
			return fmt.Errorf("%s: siblings not sorted by start", describe(*b))
		}
		prev = b
	}
	return nil
}
