package chart

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/zodiac"
)

// BuildReport renders a validated chart as markdown. chain may be empty when
// no dasha hierarchy is available.
func BuildReport(out Output, chain dasha.Chain) string {
	lang := out.Language
	var b strings.Builder
	fmt.Fprintf(&b, "# Chart Report\n\n")
	fmt.Fprintf(&b, "- Ascendant: %s (%d)\n", out.AscendantLabel, out.AscendantSignID)
	fmt.Fprintf(&b, "- Language: %s\n", lang)
	fmt.Fprintf(&b, "- Mismatches: %d\n", len(out.Mismatches))
	fmt.Fprintf(&b, "- Repairs: %d\n\n", len(out.FixLog))

	fmt.Fprintf(&b, "## Planets\n\n")
	fmt.Fprintf(&b, "| Planet | Sign | Degree | Supplied House | House |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	for _, p := range out.Planets {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n",
			zodiac.PlanetLabel(p.Name, lang), sanitizeCell(p.SignLabel), formatDegree(p.Degree), formatHouse(p.House), p.SafeHouse)
	}
	b.WriteString("\n")

	if len(out.StrengthTable) > 0 {
		fmt.Fprintf(&b, "## Shadbala\n\n")
		fmt.Fprintf(&b, "| Planet | Sthana | Dig | Kala | Chestha | Naisargika | Total |\n")
		fmt.Fprintf(&b, "|---|---|---|---|---|---|---|\n")
		for _, r := range out.StrengthTable {
			fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f |\n",
				zodiac.PlanetLabel(r.Planet, lang), r.Sthana, r.Dig, r.Kala, r.Chestha, r.Naisargika, r.Total)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Active Dasha\n\n")
	if len(chain) == 0 {
		fmt.Fprintf(&b, "- No active period available.\n")
	}
	for _, blk := range chain {
		fmt.Fprintf(&b, "- %s: %s (%s to %s)\n", blk.Level, zodiac.PlanetLabel(blk.RulingLord, lang),
			blk.Start.Format("2006-01-02"), blk.End.Format("2006-01-02"))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## House Mismatches\n\n")
	if len(out.Mismatches) == 0 {
		fmt.Fprintf(&b, "- Supplied houses agree with derived houses.\n")
	}
	for _, m := range out.Mismatches {
		fmt.Fprintf(&b, "- %s: supplied house %d, derived house %d\n", zodiac.PlanetLabel(m.Planet, lang), m.APIHouse, m.DerivedHouse)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Repairs\n\n")
	if len(out.FixLog) == 0 {
		fmt.Fprintf(&b, "- No repairs were needed.\n")
	}
	for _, f := range out.FixLog {
		fmt.Fprintf(&b, "- %s\n", sanitizeLine(f))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Appendix\n\n")
	fmt.Fprintf(&b, "### Validated Output (JSON)\n\n```json\n%s\n```\n", prettyJSON(out))
	return b.String()
}

func formatDegree(d *float64) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f°", *d)
}

func formatHouse(h *zodiac.House) string {
	if h == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *h)
}

func sanitizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeCell(s string) string {
	return strings.ReplaceAll(sanitizeLine(s), "|", "/")
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
