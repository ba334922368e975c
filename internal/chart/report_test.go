package chart

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/zodiac"
)

func TestBuildReportSections(t *testing.T) {
	out := BuildOutput(baseInput())
	chain, err := ActiveChain(out, vimshottari(), mustInstant(t, "2020-03-01"))
	require.NoError(t, err)

	md := BuildReport(out, chain)

	for _, want := range []string{
		"# Chart Report",
		"- Ascendant: Taurus (2)",
		"## Shadbala",
		"| Sun | 45.12 | 30.99 | 25.11 | 21.00 | 28.00 | 150.22 |",
		"- Maha: Sun (2020-01-01 to 2021-01-01)",
		"- Antar: Sun (2020-01-01 to 2020-06-01)",
		"- Sun: supplied house 7, derived house 8",
		"vimshottari: clamped start",
		"```json",
	} {
		assert.Contains(t, md, want)
	}
}

func TestBuildReportWithoutChain(t *testing.T) {
	md := BuildReport(BuildOutput(Input{AscendantSignID: 1}), nil)
	assert.Contains(t, md, "No active period available.")
	assert.Contains(t, md, "No repairs were needed.")
	assert.NotContains(t, md, "## Shadbala")
}

func TestBuildReportLocalizesLabels(t *testing.T) {
	in := baseInput()
	in.Language = "ne"
	md := BuildReport(BuildOutput(in), nil)
	assert.Contains(t, md, "| सूर्य | धनु |")
}

func TestRebuildReportFromJSON(t *testing.T) {
	blob, err := json.Marshal(BuildOutput(baseInput()))
	require.NoError(t, err)

	md, err := RebuildReportFromJSON(blob, vimshottari(), mustInstant(t, "2020-07-01"))
	require.NoError(t, err)
	assert.Contains(t, md, "- Maha: Sun")
	assert.False(t, strings.Contains(md, "- Antar:"), "no supplied Antar covers 2020-07-01")

	_, err = RebuildReportFromJSON([]byte("{not json"), vimshottari(), mustInstant(t, "2020-07-01"))
	assert.Error(t, err)
}

func TestActiveChainExpandsMahaOnlyTree(t *testing.T) {
	out := BuildOutput(Input{
		AscendantSignID: 1,
		VimshottariTree: []dasha.RawBlock{
			{RulingLord: "Venus", Start: "2000-01-01", End: "2020-01-01", Level: 1},
			{RulingLord: "Sun", Start: "2020-01-01", End: "2026-01-01", Level: 1},
		},
	})

	chain, err := ActiveChain(out, vimshottari(), mustInstant(t, "2022-05-05"))
	require.NoError(t, err)

	require.Len(t, chain, dasha.MaxDepth)
	assert.Equal(t, "Sun", chain.Lord(dasha.LevelMaha))

	empty, err := ActiveChain(BuildOutput(Input{AscendantSignID: 1}), vimshottari(), mustInstant(t, "2022-05-05"))
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func vimshottari() dasha.Expander {
	return dasha.NewExpander(dasha.Vimshottari())
}

func mahaOnlyOutput() Output {
	return BuildOutput(Input{
		AscendantSignID: zodiac.Aries,
		Language:        "en",
		VimshottariTree: []dasha.RawBlock{
			{RulingLord: "Venus", Start: "2000-01-01", End: "2020-01-01"},
			{RulingLord: "Sun", Start: "2020-01-01", End: "2026-01-01"},
			{RulingLord: "Moon", Start: "2026-01-01", End: "2036-01-01"},
		},
		YoginiTree: []dasha.RawBlock{{RulingLord: "Ulka", Start: "2018-01-01", End: "2024-01-01"}},
	})
}

func TestActiveChainAgreesWithFullHierarchy(t *testing.T) {
	out := mahaOnlyOutput()
	dayPreserve := vimshottari()
	dayPreserve.Granularity = 24 * time.Hour
	dayPreserve.Drift = dasha.DriftPreserve

	for _, e := range []dasha.Expander{vimshottari(), dayPreserve, dasha.NewExpander(dasha.Yogini())} {
		h, err := Hierarchy(out, e)
		require.NoError(t, err)
		for at := mustInstant(t, "1999-12-31"); at.Before(mustInstant(t, "2036-02-01")); at = at.Add(613 * time.Hour) {
			lazy, err := ActiveChain(out, e, at)
			require.NoError(t, err)
			if diff := cmp.Diff(dasha.FindActiveChain(h, at), lazy); diff != "" {
				t.Fatalf("%s chain mismatch at %s (-eager +lazy):\n%s", e.System.Name(), at, diff)
			}
		}
	}
}

func TestActiveChainFollowsExpanderSettings(t *testing.T) {
	out := mahaOnlyOutput()
	at := mustInstant(t, "2000-01-01")

	shallow := vimshottari()
	shallow.Granularity = 24 * time.Hour
	shallow.Drift = dasha.DriftPreserve
	shallow.Depth = 3

	configured, err := ActiveChain(out, shallow, at)
	require.NoError(t, err)
	full, err := ActiveChain(out, vimshottari(), at)
	require.NoError(t, err)
	assert.Len(t, configured, 3)
	assert.Len(t, full, dasha.MaxDepth)

	md := BuildReport(out, configured)
	assert.Contains(t, md, "- Pratyantar: Venus")
	assert.NotContains(t, md, "- Sookshma:")
}

func TestSuppliedTreeInvariantViolationsAreReported(t *testing.T) {
	out := BuildOutput(Input{
		AscendantSignID: zodiac.Aries,
		VimshottariTree: []dasha.RawBlock{{
			RulingLord: "Sun", Start: "2020-01-01", End: "2021-01-01", Level: 1,
			Children: []dasha.RawBlock{
				{RulingLord: "Moon", Start: "2020-01-01", End: "2020-06-01", Level: 2},
				{RulingLord: "Moon", Start: "2020-06-01", End: "2021-01-01", Level: 2},
			},
		}},
	})

	h, err := Hierarchy(out, vimshottari())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate ruling lord Moon")
	assert.Equal(t, 3, h.Len())

	chain, err := ActiveChain(out, vimshottari(), mustInstant(t, "2020-07-01"))
	require.Error(t, err)
	assert.Equal(t, []string{"Sun", "Moon"}, []string{chain.Lord(dasha.LevelMaha), chain.Lord(dasha.LevelAntar)})
}

func mustInstant(t *testing.T, s string) time.Time {
	t.Helper()
	at, err := dasha.ParseInstant(s)
	require.NoError(t, err)
	return at
}

func TestHierarchyFollowsExpanderSystem(t *testing.T) {
	out := BuildOutput(Input{
		AscendantSignID: zodiac.Aries,
		VimshottariTree: []dasha.RawBlock{{RulingLord: "Venus", Start: "2001-01-01", End: "2021-01-01"}},
		YoginiTree:      []dasha.RawBlock{{RulingLord: "Siddha", Start: "2015-01-01", End: "2022-01-01"}},
	})

	vim, err := Hierarchy(out, dasha.NewExpander(dasha.Vimshottari()))
	require.NoError(t, err)
	yog, err := Hierarchy(out, dasha.NewExpander(dasha.Yogini()))
	require.NoError(t, err)
	require.Equal(t, dasha.SystemVimshottari, vim.System())
	require.Equal(t, dasha.SystemYogini, yog.System())

	at := mustInstant(t, "2018-03-01")
	assert.Equal(t, "Venus", dasha.FindActiveChain(vim, at).Lord(dasha.LevelMaha))
	assert.Equal(t, "Siddha", dasha.FindActiveChain(yog, at).Lord(dasha.LevelMaha))
	assert.Len(t, yog.AtLevel(dasha.LevelAntar), 8)
}
