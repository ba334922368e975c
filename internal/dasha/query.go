package dasha

import (
	"fmt"
	"slices"
	"time"
)

// Chain holds the active period at each level, Maha first. Entry i's Parent is
// entry i-1's RulingLord.
type Chain []Block

func (c Chain) At(l Level) (Block, bool) {
	i := int(l) - 1
	if i < 0 || i >= len(c) {
		return Block{}, false
	}
	return c[i], true
}

// Lord returns the ruling lord at level l, or "" when the chain is shorter.
func (c Chain) Lord(l Level) string {
	b, ok := c.At(l)
	if !ok {
		return ""
	}
	return b.RulingLord
}

// FindActiveChain walks the hierarchy level by level and returns the period
// containing at on each level. Intervals are half-open, so an instant on a
// boundary belongs to the period that begins there. The walk stops early at a
// coverage gap.
func FindActiveChain(h *Hierarchy, at time.Time) Chain {
	if h == nil {
		return nil
	}
	var chain Chain
	candidates := h.roots
	for len(candidates) > 0 && len(chain) < MaxDepth {
		idx := h.containing(candidates, at)
		if idx < 0 {
			break
		}
		chain = append(chain, h.nodes[idx].block)
		candidates = h.nodes[idx].children
	}
	return chain
}

// containing returns the earliest-starting sibling that contains at. Siblings
// are sorted by start, so the scan stops at the first one beginning after at.
func (h *Hierarchy) containing(siblings []int, at time.Time) int {
	for _, idx := range siblings {
		b := h.nodes[idx].block
		if b.Start.After(at) {
			break
		}
		if b.Contains(at) {
			return idx
		}
	}
	return -1
}

// ActiveChainAt parses an ISO-8601 instant and resolves its chain.
func ActiveChainAt(h *Hierarchy, isoInstant string) (Chain, error) {
	at, err := ParseInstant(isoInstant)
	if err != nil {
		return nil, fmt.Errorf("active chain: %w", err)
	}
	return FindActiveChain(h, at), nil
}

// UpcomingChanges lists periods, of any level, that begin strictly after from,
// ordered by start and then by level. limit <= 0 means no limit.
func UpcomingChanges(h *Hierarchy, from time.Time, limit int) []Block {
	var out []Block
	for _, b := range h.Blocks() {
		if b.Start.After(from) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, compareStartLevel)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// PeriodsInRange lists periods overlapping the half-open range [start, end),
// ordered by start and then by level.
func PeriodsInRange(h *Hierarchy, start, end time.Time) []Block {
	if !start.Before(end) {
		return nil
	}
	var out []Block
	for _, b := range h.Blocks() {
		if b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, compareStartLevel)
	return out
}

func compareStartLevel(a, b Block) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return int(a.Level) - int(b.Level)
}
