package chart

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/zodiac"
)

const (
	StageAscendant = "ascendant"
	StageHouses    = "houses"
	StageStrength  = "strength"
	StageLabels    = "labels"
	StageDasha     = "dasha"
	StageAssemble  = "assemble"
)

// StageProgressFn observes pipeline stages as they finish.
type StageProgressFn func(stage, message string)

// BuildOutput turns raw, possibly inconsistent chart facts into a validated
// output. It never fails: disagreements become Mismatches and repairs become
// FixLog entries.
func BuildOutput(in Input) Output {
	return BuildOutputWithProgress(in, nil)
}

func BuildOutputWithProgress(in Input, progress StageProgressFn) Output {
	lang := zodiac.ParseLanguage(in.Language)
	out := Output{
		AscendantSignID: in.AscendantSignID,
		AscendantLabel:  strings.TrimSpace(in.AscendantLabel),
		Language:        lang,
		StrengthTable:   []StrengthRow{},
		FixLog:          []string{},
	}

	if !in.AscendantSignID.Valid() {
		out.FixLog = append(out.FixLog, fmt.Sprintf("ascendant sign id %d is outside 1..12", in.AscendantSignID))
	}
	if out.AscendantLabel == "" {
		out.AscendantLabel = zodiac.SignLabel(in.AscendantSignID, lang)
		emit(progress, StageAscendant, "ascendant label backfilled as "+out.AscendantLabel)
	} else {
		emit(progress, StageAscendant, "ascendant label supplied")
	}

	out.Planets, out.Mismatches = ResolvePlanetHouses(in.Planets, in.AscendantSignID)
	for _, p := range in.Planets {
		if p.House != nil && !zodiac.House(*p.House).Valid() {
			out.FixLog = append(out.FixLog, fmt.Sprintf("ignored out-of-range house %d for %s; using derived house", *p.House, canonicalName(p.Name)))
		}
		if !p.SignID.Valid() {
			out.FixLog = append(out.FixLog, fmt.Sprintf("sign id %d for %s is outside 1..12", p.SignID, canonicalName(p.Name)))
		}
	}
	emit(progress, StageHouses, fmt.Sprintf("resolved %d planets, %d mismatches", len(out.Planets), len(out.Mismatches)))

	for i := range out.Planets {
		raw := in.Planets[i].Strength
		if raw == nil {
			raw = lookupStrength(in.StrengthByPlanet, in.Planets[i].Name)
		}
		out.Planets[i].Strength = NormalizeStrength(raw)
		if s := out.Planets[i].Strength; s != nil {
			out.StrengthTable = append(out.StrengthTable, StrengthRow{Planet: out.Planets[i].Name, Strength: *s})
		}
	}
	emit(progress, StageStrength, fmt.Sprintf("normalized strength for %d planets", len(out.StrengthTable)))

	backfilled := 0
	for i := range out.Planets {
		if strings.TrimSpace(out.Planets[i].SignLabel) == "" {
			out.Planets[i].SignLabel = zodiac.SignLabel(out.Planets[i].SignID, lang)
			backfilled++
		}
	}
	emit(progress, StageLabels, fmt.Sprintf("backfilled %d sign labels", backfilled))

	vim, vimLog := dasha.ValidateAndRepair(dasha.SystemVimshottari, in.VimshottariTree)
	yog, yogLog := dasha.ValidateAndRepair(dasha.SystemYogini, in.YoginiTree)
	out.VimshottariTree = nonNil(vim)
	out.YoginiTree = nonNil(yog)
	out.FixLog = append(out.FixLog, vimLog...)
	out.FixLog = append(out.FixLog, yogLog...)
	emit(progress, StageDasha, fmt.Sprintf("repaired dasha trees with %d fixes", len(vimLog)+len(yogLog)))

	emit(progress, StageAssemble, fmt.Sprintf("output ready: %d mismatches, %d fixes", len(out.Mismatches), len(out.FixLog)))
	return out
}

type PipelineMetadata struct {
	StartedAt      time.Time `json:"startedAt"`
	CompletedAt    time.Time `json:"completedAt"`
	StagesExecuted []string  `json:"stagesExecuted"`
}

type PipelineResult struct {
	Output   Output           `json:"output"`
	Metadata PipelineMetadata `json:"metadata"`
}

// Pipeline runs BuildOutput with deployment defaults applied to the input.
type Pipeline struct {
	// DefaultLanguage is used when the input names no language.
	DefaultLanguage string
}

func NewPipeline(defaultLanguage string) *Pipeline {
	return &Pipeline{DefaultLanguage: defaultLanguage}
}

func (p *Pipeline) Run(ctx context.Context, in Input) (PipelineResult, error) {
	return p.RunWithProgress(ctx, in, nil)
}

// RunWithProgress fails only when ctx is already done; chart anomalies are
// reported inside the output.
func (p *Pipeline) RunWithProgress(ctx context.Context, in Input, progress StageProgressFn) (PipelineResult, error) {
	res := PipelineResult{Metadata: PipelineMetadata{StartedAt: time.Now().UTC(), StagesExecuted: []string{}}}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("build chart: %w", err)
	}
	if strings.TrimSpace(in.Language) == "" {
		in.Language = p.DefaultLanguage
	}
	res.Output = BuildOutputWithProgress(in, func(stage, message string) {
		res.Metadata.StagesExecuted = append(res.Metadata.StagesExecuted, stage)
		emit(progress, stage, message)
	})
	res.Metadata.CompletedAt = time.Now().UTC()
	return res, nil
}

// lookupStrength prefers an exact key and falls back to matching planet names.
func lookupStrength(byPlanet map[string]PartialStrength, name string) *PartialStrength {
	if len(byPlanet) == 0 {
		return nil
	}
	if s, ok := byPlanet[name]; ok {
		return &s
	}
	for _, k := range slices.Sorted(maps.Keys(byPlanet)) {
		if zodiac.SamePlanet(k, name) {
			s := byPlanet[k]
			return &s
		}
	}
	return nil
}

func nonNil(blocks []dasha.Block) []dasha.Block {
	if blocks == nil {
		return []dasha.Block{}
	}
	return blocks
}

func emit(progress StageProgressFn, stage, message string) {
	if progress != nil {
		progress(stage, message)
	}
}
