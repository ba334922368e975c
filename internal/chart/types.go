package chart

import (
	"github.com/joelkehle/kundali/internal/dasha"
	"github.com/joelkehle/kundali/internal/zodiac"
)

// PartialStrength is a Shadbala record as supplied; any component may be absent.
type PartialStrength struct {
	Sthana     *float64 `json:"sthana,omitempty"`
	Dig        *float64 `json:"dig,omitempty"`
	Kala       *float64 `json:"kala,omitempty"`
	Chestha    *float64 `json:"chestha,omitempty"`
	Naisargika *float64 `json:"naisargika,omitempty"`
	Total      *float64 `json:"total,omitempty"`
}

// Strength is a normalized Shadbala record: every field non-negative and
// rounded to two decimals.
type Strength struct {
	Sthana     float64 `json:"sthana"`
	Dig        float64 `json:"dig"`
	Kala       float64 `json:"kala"`
	Chestha    float64 `json:"chestha"`
	Naisargika float64 `json:"naisargika"`
	Total      float64 `json:"total"`
}

type PlanetInput struct {
	Name      string           `json:"name"`
	SignID    zodiac.SignID    `json:"signId"`
	SignLabel string           `json:"signLabel,omitempty"`
	Degree    *float64         `json:"degree,omitempty"`
	House     *int             `json:"house,omitempty"`
	Strength  *PartialStrength `json:"strength,omitempty"`
}

type Input struct {
	AscendantSignID  zodiac.SignID              `json:"ascendantSignId"`
	AscendantLabel   string                     `json:"ascendantLabel,omitempty"`
	Planets          []PlanetInput              `json:"planets"`
	StrengthByPlanet map[string]PartialStrength `json:"strengthByPlanet,omitempty"`
	VimshottariTree  []dasha.RawBlock           `json:"vimshottariTree,omitempty"`
	YoginiTree       []dasha.RawBlock           `json:"yoginiTree,omitempty"`
	Language         string                     `json:"language,omitempty"`
}

type PlanetOutput struct {
	Name      string        `json:"name"`
	SignID    zodiac.SignID `json:"signId"`
	SignLabel string        `json:"signLabel"`
	Degree    *float64      `json:"degree"`
	House     *zodiac.House `json:"house"`
	SafeHouse zodiac.House  `json:"safeHouse"`
	Strength  *Strength     `json:"strength"`
}

type StrengthRow struct {
	Planet string `json:"planet"`
	Strength
}

// Mismatch records a supplied house that disagrees with the derived one. The
// supplied value is still the one used as SafeHouse.
type Mismatch struct {
	Planet       string       `json:"planet"`
	APIHouse     zodiac.House `json:"apiHouse"`
	DerivedHouse zodiac.House `json:"derivedHouse"`
}

type Output struct {
	AscendantSignID zodiac.SignID   `json:"ascendantSignId"`
	AscendantLabel  string          `json:"ascendantLabel"`
	Planets         []PlanetOutput  `json:"planets"`
	StrengthTable   []StrengthRow   `json:"strengthTable"`
	VimshottariTree []dasha.Block   `json:"vimshottariTree"`
	YoginiTree      []dasha.Block   `json:"yoginiTree"`
	Mismatches      []Mismatch      `json:"mismatches"`
	FixLog          []string        `json:"fixLog"`
	Language        zodiac.Language `json:"language"`
}

// AsInput turns a validated output back into an input, using each planet's
// SafeHouse as its supplied house. Rebuilding from it yields no new mismatches.
func (o Output) AsInput() Input {
	in := Input{
		AscendantSignID: o.AscendantSignID,
		AscendantLabel:  o.AscendantLabel,
		Language:        string(o.Language),
	}
	for _, p := range o.Planets {
		house := int(p.SafeHouse)
		pi := PlanetInput{
			Name:      p.Name,
			SignID:    p.SignID,
			SignLabel: p.SignLabel,
			Degree:    p.Degree,
			House:     &house,
		}
		if p.Strength != nil {
			pi.Strength = p.Strength.Partial()
		}
		in.Planets = append(in.Planets, pi)
	}
	for _, b := range o.VimshottariTree {
		in.VimshottariTree = append(in.VimshottariTree, b.Raw())
	}
	for _, b := range o.YoginiTree {
		in.YoginiTree = append(in.YoginiTree, b.Raw())
	}
	return in
}
