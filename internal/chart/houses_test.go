package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelkehle/kundali/internal/zodiac"
)

func TestResolveScenarioDerivedOnly(t *testing.T) {
	planets, mismatches := ResolvePlanetHouses([]PlanetInput{{Name: "Sun", SignID: zodiac.Sagittarius}}, zodiac.Taurus)

	require.Len(t, planets, 1)
	assert.Equal(t, zodiac.House(8), planets[0].SafeHouse)
	assert.Nil(t, planets[0].House)
	assert.Empty(t, mismatches)
}

func TestResolveScenarioSuppliedAgrees(t *testing.T) {
	planets, mismatches := ResolvePlanetHouses([]PlanetInput{{Name: "Saturn", SignID: zodiac.Aquarius, House: ptr(10)}}, zodiac.Taurus)

	assert.Equal(t, zodiac.House(10), planets[0].SafeHouse)
	assert.Empty(t, mismatches)
}

func TestResolveScenarioSuppliedDisagrees(t *testing.T) {
	planets, mismatches := ResolvePlanetHouses([]PlanetInput{{Name: "Sun", SignID: zodiac.Sagittarius, House: ptr(7)}}, zodiac.Taurus)

	assert.Equal(t, zodiac.House(7), planets[0].SafeHouse)
	require.Len(t, mismatches, 1)
	assert.Equal(t, Mismatch{Planet: "Sun", APIHouse: 7, DerivedHouse: 8}, mismatches[0])
}

func TestResolveIgnoresOutOfRangeHouse(t *testing.T) {
	for _, h := range []int{0, 13, -2} {
		planets, mismatches := ResolvePlanetHouses([]PlanetInput{{Name: "moon", SignID: zodiac.Leo, House: ptr(h)}}, zodiac.Taurus)
		assert.Equal(t, zodiac.House(4), planets[0].SafeHouse)
		assert.Nil(t, planets[0].House)
		assert.Equal(t, "Moon", planets[0].Name)
		assert.Empty(t, mismatches)
	}
}

func TestResolveFeedbackAddsNoNewMismatches(t *testing.T) {
	for asc := zodiac.Aries; asc <= zodiac.Pisces; asc++ {
		var in []PlanetInput
		for i, p := range zodiac.Planets() {
			pi := PlanetInput{Name: string(p), SignID: zodiac.SignID(i%12 + 1)}
			if i%2 == 0 {
				pi.House = ptr((i*5)%12 + 1)
			}
			in = append(in, pi)
		}
		first, firstMismatches := ResolvePlanetHouses(in, asc)

		var again []PlanetInput
		for _, p := range first {
			again = append(again, PlanetInput{Name: p.Name, SignID: p.SignID, House: ptr(int(p.SafeHouse))})
		}
		second, mismatches := ResolvePlanetHouses(again, asc)

		assert.ElementsMatch(t, firstMismatches, mismatches, "ascendant %d", asc)
		for i := range first {
			assert.Equal(t, first[i].SafeHouse, second[i].SafeHouse)
		}
	}
}

func TestResolveDerivedOnlyInputRoundTripsWithoutMismatch(t *testing.T) {
	var in []PlanetInput
	for i, p := range zodiac.Planets() {
		in = append(in, PlanetInput{Name: string(p), SignID: zodiac.SignID(i + 1)})
	}
	first, _ := ResolvePlanetHouses(in, zodiac.Scorpio)

	var again []PlanetInput
	for _, p := range first {
		again = append(again, PlanetInput{Name: p.Name, SignID: p.SignID, House: ptr(int(p.SafeHouse))})
	}
	_, mismatches := ResolvePlanetHouses(again, zodiac.Scorpio)
	assert.Empty(t, mismatches)
}
