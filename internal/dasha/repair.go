package dasha

import (
	"fmt"
	"slices"
)

type repairer struct {
	tree string
	log  []string
}

// ValidateAndRepair parses and structurally repairs a supplied period tree.
// Blocks with unparseable or inverted intervals are dropped, children are
// clamped into their parent's interval and dropped if nothing remains, level
// tags are aligned with depth, and every sibling list is sorted by start.
// Each change is described in the returned fix log, prefixed with tree.
func ValidateAndRepair(tree string, blocks []RawBlock) ([]Block, []string) {
	r := &repairer{tree: tree}
	out := r.repairLevel(blocks, nil, LevelMaha)
	return out, r.log
}

func (r *repairer) repairLevel(raw []RawBlock, parent *Block, depth Level) []Block {
	out := make([]Block, 0, len(raw))
	for i, rb := range raw {
		label := describeRaw(rb, i, depth)
		start, err := ParseInstant(rb.Start)
		if err != nil {
			r.logf("dropped %s: invalid start: %v", label, err)
			continue
		}
		end, err := ParseInstant(rb.End)
		if err != nil {
			r.logf("dropped %s: invalid end: %v", label, err)
			continue
		}
		if !start.Before(end) {
			r.logf("dropped %s: start %s is not before end %s", label, formatInstant(start), formatInstant(end))
			continue
		}

		if parent != nil {
			if start.Before(parent.Start) {
				r.logf("clamped start of %s from %s to %s to fit within %s", label, formatInstant(start), formatInstant(parent.Start), describe(*parent))
				start = parent.Start
			}
			if end.After(parent.End) {
				r.logf("clamped end of %s from %s to %s to fit within %s", label, formatInstant(end), formatInstant(parent.End), describe(*parent))
				end = parent.End
			}
			if !start.Before(end) {
				r.logf("dropped %s: lies entirely outside %s", label, describe(*parent))
				continue
			}
		}

		level := Level(rb.Level)
		if level != depth {
			if rb.Level == 0 {
				r.logf("assigned level %d to %s", depth, label)
			} else {
				r.logf("re-tagged %s from level %d to %d", label, rb.Level, depth)
			}
			level = depth
		}

		b := Block{
			Name:       rb.Name,
			RulingLord: rb.RulingLord,
			Start:      start,
			End:        end,
			Level:      level,
		}
		if parent != nil {
			b.Parent = parent.RulingLord
		}
		if len(rb.Children) > 0 {
			b.Children = r.repairLevel(rb.Children, &b, depth+1)
		}
		out = append(out, b)
	}

	if !slices.IsSortedFunc(out, compareStart) {
		slices.SortStableFunc(out, compareStart)
		if parent == nil {
			r.logf("reordered %d level %d periods by start", len(out), depth)
		} else {
			r.logf("reordered %d children of %s by start", len(out), describe(*parent))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *repairer) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if r.tree != "" {
		msg = r.tree + ": " + msg
	}
	r.log = append(r.log, msg)
}

func compareStart(a, b Block) int {
	return a.Start.Compare(b.Start)
}

func describeRaw(rb RawBlock, index int, depth Level) string {
	switch {
	case rb.Name != "":
		return fmt.Sprintf("%q (level %d)", rb.Name, depth)
	case rb.RulingLord != "":
		return fmt.Sprintf("%s period (level %d)", rb.RulingLord, depth)
	default:
		return fmt.Sprintf("period #%d (level %d)", index+1, depth)
	}
}

func describe(b Block) string {
	if b.Name != "" {
		return fmt.Sprintf("%q", b.Name)
	}
	return fmt.Sprintf("%s %s", b.RulingLord, b.Level)
}
