package chart

import (
	"github.com/joelkehle/kundali/internal/zodiac"
)

// ResolvePlanetHouses derives each planet's house from its sign and settles
// on a SafeHouse. A supplied house in 1..12 wins over the derived one and a
// disagreement is reported as a Mismatch; out-of-range supplied houses are
// ignored. Labels and strength are left for the caller.
func ResolvePlanetHouses(planets []PlanetInput, ascendant zodiac.SignID) ([]PlanetOutput, []Mismatch) {
	out := make([]PlanetOutput, 0, len(planets))
	mismatches := []Mismatch{}
	for _, p := range planets {
		derived := zodiac.DeriveHouse(p.SignID, ascendant)
		po := PlanetOutput{
			Name:      canonicalName(p.Name),
			SignID:    p.SignID,
			SignLabel: p.SignLabel,
			Degree:    p.Degree,
			SafeHouse: derived,
		}
		if supplied, ok := suppliedHouse(p); ok {
			po.House = &supplied
			po.SafeHouse = supplied
			if supplied != derived {
				mismatches = append(mismatches, Mismatch{
					Planet:       po.Name,
					APIHouse:     supplied,
					DerivedHouse: derived,
				})
			}
		}
		out = append(out, po)
	}
	return out, mismatches
}

func suppliedHouse(p PlanetInput) (zodiac.House, bool) {
	if p.House == nil {
		return 0, false
	}
	h := zodiac.House(*p.House)
	return h, h.Valid()
}

func canonicalName(name string) string {
	if p, ok := zodiac.ParsePlanet(name); ok {
		return string(p)
	}
	return name
}
