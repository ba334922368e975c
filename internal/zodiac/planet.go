package zodiac

import "strings"

type Planet string

const (
	Sun     Planet = "Sun"
	Moon    Planet = "Moon"
	Mars    Planet = "Mars"
	Mercury Planet = "Mercury"
	Jupiter Planet = "Jupiter"
	Venus   Planet = "Venus"
	Saturn  Planet = "Saturn"
	Rahu    Planet = "Rahu"
	Ketu    Planet = "Ketu"
)

// Planets returns the nine bodies in traditional weekday order followed by the
// nodes. Each call returns a fresh slice.
func Planets() []Planet {
	return []Planet{Sun, Moon, Mars, Mercury, Jupiter, Venus, Saturn, Rahu, Ketu}
}

// ParsePlanet resolves a planet name case-insensitively, accepting the common
// Sanskrit names as well.
func ParsePlanet(name string) (Planet, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sun", "surya":
		return Sun, true
	case "moon", "chandra":
		return Moon, true
	case "mars", "mangal":
		return Mars, true
	case "mercury", "budha":
		return Mercury, true
	case "jupiter", "guru":
		return Jupiter, true
	case "venus", "shukra":
		return Venus, true
	case "saturn", "shani":
		return Saturn, true
	case "rahu":
		return Rahu, true
	case "ketu":
		return Ketu, true
	}
	return "", false
}

// SamePlanet reports whether two free-form names refer to the same body.
func SamePlanet(a, b string) bool {
	pa, okA := ParsePlanet(a)
	pb, okB := ParsePlanet(b)
	if okA && okB {
		return pa == pb
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
