// Package contextstack merges a person's age, their active dasha chain and
// current planetary transits into one summary.
package contextstack

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/zodiac"
)

type Age struct {
	Years  int `json:"years"`
	Months int `json:"months"`
	Days   int `json:"days"`
}

// Transit is a current planetary position supplied by an ephemeris service.
type Transit struct {
	Planet     string        `json:"planet"`
	SignID     zodiac.SignID `json:"signId"`
	Degree     *float64      `json:"degree,omitempty"`
	Retrograde bool          `json:"retrograde,omitempty"`
}

type TaggedTransit struct {
	Transit
	IsPeriodRuler bool `json:"isPeriodRuler"`
}

type DashaSummary struct {
	Maha       string      `json:"maha"`
	Antar      string      `json:"antar"`
	Pratyantar string      `json:"pratyantar,omitempty"`
	Sookshma   string      `json:"sookshma,omitempty"`
	Pran       string      `json:"pran,omitempty"`
	Chain      dasha.Chain `json:"chain"`
}

type Stack struct {
	Age      Age             `json:"age"`
	Dasha    DashaSummary    `json:"dasha"`
	Transits []TaggedTransit `json:"transits"`
}

func Summarize(chain dasha.Chain) DashaSummary {
	if chain == nil {
		chain = dasha.Chain{}
	}
	return DashaSummary{
		Maha:       chain.Lord(dasha.LevelMaha),
		Antar:      chain.Lord(dasha.LevelAntar),
		Pratyantar: chain.Lord(dasha.LevelPratyantar),
		Sookshma:   chain.Lord(dasha.LevelSookshma),
		Pran:       chain.Lord(dasha.LevelPran),
		Chain:      chain,
	}
}

// Compose tags every transit whose planet rules the current Maha or Antar
// period. Nothing else is derived.
func Compose(age Age, summary DashaSummary, transits []Transit) Stack {
	s := Stack{Age: age, Dasha: summary, Transits: make([]TaggedTransit, 0, len(transits))}
	for _, tr := range transits {
		s.Transits = append(s.Transits, TaggedTransit{
			Transit:       tr,
			IsPeriodRuler: rules(summary.Maha, tr.Planet) || rules(summary.Antar, tr.Planet),
		})
	}
	return s
}

// rules compares a period lord with a transiting planet. Yogini lords are
// mapped to the planet they stand for.
func rules(lord, planet string) bool {
	if lord == "" {
		return false
	}
	if zodiac.SamePlanet(lord, planet) {
		return true
	}
	if p, ok := dasha.Yogini().PlanetOf(lord); ok {
		return zodiac.SamePlanet(string(p), planet)
	}
	return false
}

type ChainSource func(ctx context.Context) (dasha.Chain, error)

type TransitSource func(ctx context.Context) ([]Transit, error)

// Gather resolves the dasha chain and the transits concurrently and composes
// them once both are available. The first failure cancels the other fetch.
func Gather(ctx context.Context, age Age, chains ChainSource, transits TransitSource) (Stack, error) {
	var (
		chain dasha.Chain
		trs   []Transit
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := chains(gctx)
		if err != nil {
			return fmt.Errorf("dasha chain: %w", err)
		}
		chain = c
		return nil
	})
	g.Go(func() error {
		t, err := transits(gctx)
		if err != nil {
			return fmt.Errorf("transits: %w", err)
		}
		trs = t
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stack{}, err
	}
	return Compose(age, Summarize(chain), trs), nil
}
