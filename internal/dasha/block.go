// Package dasha models nested planetary time periods: repair of supplied
// period trees, proportional subdivision into five levels, and point-in-time
// queries over the resulting hierarchy.
package dasha

import (
	"fmt"
	"strings"
	"time"
)

type Level int

const (
	LevelMaha Level = iota + 1
	LevelAntar
	LevelPratyantar
	LevelSookshma
	LevelPran
)

// MaxDepth is the number of levels in a fully expanded hierarchy.
const MaxDepth = 5

func (l Level) String() string {
	switch l {
	case LevelMaha:
		return "Maha"
	case LevelAntar:
		return "Antar"
	case LevelPratyantar:
		return "Pratyantar"
	case LevelSookshma:
		return "Sookshma"
	case LevelPran:
		return "Pran"
	}
	return fmt.Sprintf("Level%d", int(l))
}

// Block is one period. Start is inclusive, End exclusive.
type Block struct {
	Name       string    `json:"name"`
	RulingLord string    `json:"rulingLord"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Level      Level     `json:"level"`
	Parent     string    `json:"parent,omitempty"`
	Children   []Block   `json:"children,omitempty"`
}

func (b Block) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

func (b Block) Duration() time.Duration { return b.End.Sub(b.Start) }

// Raw converts a block back into its unvalidated wire form.
func (b Block) Raw() RawBlock {
	rb := RawBlock{
		Name:       b.Name,
		RulingLord: b.RulingLord,
		Start:      b.Start.Format(time.RFC3339Nano),
		End:        b.End.Format(time.RFC3339Nano),
		Level:      int(b.Level),
	}
	for _, c := range b.Children {
		rb.Children = append(rb.Children, c.Raw())
	}
	return rb
}

// RawBlock is a period as supplied by an external source, before its
// timestamps have been parsed or its structure repaired.
type RawBlock struct {
	Name       string     `json:"name"`
	RulingLord string     `json:"rulingLord"`
	Start      string     `json:"start"`
	End        string     `json:"end"`
	Level      int        `json:"level,omitempty"`
	Children   []RawBlock `json:"children,omitempty"`
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant accepts RFC 3339 timestamps, zone-less date-times and bare
// dates. Zone-less values are read as UTC; the result is always UTC.
func ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func formatInstant(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
