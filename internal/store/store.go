// Package store archives built charts so their hierarchies can be queried
// later without resubmitting the input.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joelkehle/kundali/internal/chart"
)

var ErrNotFound = errors.New("chart not found")

// Record is one archived chart: the input as received and the validated
// output built from it.
type Record struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Input     chart.Input  `json:"input"`
	Output    chart.Output `json:"output"`
}

type Store interface {
	Save(ctx context.Context, in chart.Input, out chart.Output) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// List returns records newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open picks a backend by name: "sqlite", "file" or "memory".
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "sqlite":
		return NewSQLiteStore(path)
	case "file":
		return NewFileStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, errors.New("unknown store backend " + backend)
	}
}

func newRecord(in chart.Input, out chart.Output) Record {
	return Record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Input:     in,
		Output:    out,
	}
}

func newestFirst(recs []Record, limit int) []Record {
	slices.SortStableFunc(recs, func(a, b Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
