// Package zodiac holds the fixed vocabulary of the engine: the twelve signs,
// the nine planets, house geometry and localized labels.
package zodiac

// SignID is a cyclic zodiac index, 1 (Aries) through 12 (Pisces).
type SignID int

// House is a life-domain sector numbered 1..12 relative to the ascendant.
type House int

const (
	Aries SignID = iota + 1
	Taurus
	Gemini
	Cancer
	Leo
	Virgo
	Libra
	Scorpio
	Sagittarius
	Capricorn
	Aquarius
	Pisces
)

const SignCount = 12

func (s SignID) Valid() bool { return s >= 1 && s <= SignCount }

func (h House) Valid() bool { return h >= 1 && h <= SignCount }

// DeriveHouse counts whole signs from the ascendant, which is always house 1.
func DeriveHouse(sign, ascendant SignID) House {
	d := (int(sign) - int(ascendant)) % SignCount
	if d < 0 {
		d += SignCount
	}
	return House(d + 1)
}
