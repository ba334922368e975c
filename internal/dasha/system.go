package dasha

import (
	"strings"

	"github.com/joelkehle/kundali/internal/zodiac"
)

// Lord is one ruler in a dasha cycle with its full-period weight in years.
type Lord struct {
	Name   string
	Planet zodiac.Planet
	Years  int
}

// System is a cyclic sequence of lords whose weights sum to TotalYears.
type System struct {
	name  string
	lords []Lord
	total int
}

// vimshottariLords and yoginiLords return a new cycle on every call.
func vimshottariLords() []Lord {
	return []Lord{
		{"Sun", zodiac.Sun, 6},
		{"Moon", zodiac.Moon, 10},
		{"Mars", zodiac.Mars, 7},
		{"Rahu", zodiac.Rahu, 18},
		{"Jupiter", zodiac.Jupiter, 16},
		{"Saturn", zodiac.Saturn, 19},
		{"Mercury", zodiac.Mercury, 17},
		{"Ketu", zodiac.Ketu, 7},
		{"Venus", zodiac.Venus, 20},
	}
}

func yoginiLords() []Lord {
	return []Lord{
		{"Mangala", zodiac.Moon, 1},
		{"Pingala", zodiac.Sun, 2},
		{"Dhanya", zodiac.Jupiter, 3},
		{"Bhramari", zodiac.Mars, 4},
		{"Bhadrika", zodiac.Mercury, 5},
		{"Ulka", zodiac.Saturn, 6},
		{"Siddha", zodiac.Venus, 7},
		{"Sankata", zodiac.Rahu, 8},
	}
}

const (
	SystemVimshottari = "vimshottari"
	SystemYogini      = "yogini"
)

func Vimshottari() System { return newSystem(SystemVimshottari, vimshottariLords()) }

func Yogini() System { return newSystem(SystemYogini, yoginiLords()) }

func SystemByName(name string) (System, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SystemVimshottari, "":
		return Vimshottari(), true
	case SystemYogini:
		return Yogini(), true
	}
	return System{}, false
}

func newSystem(name string, lords []Lord) System {
	s := System{name: name, lords: lords}
	for _, l := range lords {
		s.total += l.Years
	}
	return s
}

func (s System) Name() string    { return s.name }
func (s System) TotalYears() int { return s.total }

func (s System) Lords() []Lord {
	out := make([]Lord, len(s.lords))
	copy(out, s.lords)
	return out
}

// indexOf finds a lord by its cycle name or, failing that, by the planet it
// stands for, so "Mangala" and "Moon" both open the Yogini cycle.
func (s System) indexOf(name string) (int, bool) {
	for i, l := range s.lords {
		if strings.EqualFold(l.Name, strings.TrimSpace(name)) {
			return i, true
		}
	}
	p, ok := zodiac.ParsePlanet(name)
	if !ok {
		return 0, false
	}
	for i, l := range s.lords {
		if l.Planet == p {
			return i, true
		}
	}
	return 0, false
}

// PlanetOf maps a lord name in this system to the planet it represents.
func (s System) PlanetOf(name string) (zodiac.Planet, bool) {
	i, ok := s.indexOf(name)
	if !ok {
		return "", false
	}
	return s.lords[i].Planet, true
}
