package chart

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/joelkehle/kundali/internal/dasha"
)

// DecodeOutput reads a saved output so it can be re-rendered or queried
// without rebuilding it from the original input.
func DecodeOutput(blob []byte) (Output, error) {
	var out Output
	if err := json.Unmarshal(blob, &out); err != nil {
		return Output{}, fmt.Errorf("decode chart output: %w", err)
	}
	return out, nil
}

// RebuildReportFromJSON regenerates report markdown from a saved output. If
// the output carries a Vimshottari tree, the chain active at `at` under e is
// included.
func RebuildReportFromJSON(blob []byte, e dasha.Expander, at time.Time) (string, error) {
	out, err := DecodeOutput(blob)
	if err != nil {
		return "", err
	}
	chain, _ := ActiveChain(out, e, at)
	return BuildReport(out, chain), nil
}

// ActiveChain resolves the chain active at `at` over the tree of e's system.
// A supplied nested tree is queried as it is. A tree holding only Maha
// periods is expanded lazily along the path to at, so no other branch is
// built. The chain is returned even when err reports a broken invariant in a
// supplied tree.
func ActiveChain(out Output, e dasha.Expander, at time.Time) (dasha.Chain, error) {
	system, tree := treeFor(out, e)
	if len(tree) == 0 {
		return nil, nil
	}
	if !hasChildren(tree) {
		return e.ChainAt(tree, at), nil
	}
	h := dasha.FromTree(system, tree)
	return dasha.FindActiveChain(h, at), checkSupplied(system, h)
}

// Hierarchy builds the queryable hierarchy for e's dasha system: the Yogini
// tree for a Yogini expander, the Vimshottari tree otherwise. Supplied nested
// trees are checked for containment, ordering and unique sibling lords; the
// hierarchy is returned even when err reports a violation.
func Hierarchy(out Output, e dasha.Expander) (*dasha.Hierarchy, error) {
	system, tree := treeFor(out, e)
	if !hasChildren(tree) {
		return e.Expand(tree), nil
	}
	h := dasha.FromTree(system, tree)
	return h, checkSupplied(system, h)
}

func treeFor(out Output, e dasha.Expander) (string, []dasha.Block) {
	if e.System.Name() == dasha.SystemYogini {
		return dasha.SystemYogini, out.YoginiTree
	}
	return dasha.SystemVimshottari, out.VimshottariTree
}

func checkSupplied(system string, h *dasha.Hierarchy) error {
	if err := h.Check(); err != nil {
		return fmt.Errorf("%s tree: %w", system, err)
	}
	return nil
}

func hasChildren(tree []dasha.Block) bool {
	for _, b := range tree {
		if len(b.Children) > 0 {
			return true
		}
	}
	return false
}
