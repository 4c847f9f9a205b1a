package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForecastDeterministic(t *testing.T) {
	seed := SeedFor("game-1")
	for age := 0.0; age < 20; age++ {
		a := Forecast(Winter, age, seed)
		b := Forecast(Winter, age, seed)
		assert.Equal(t, a, b)
		assert.Contains(t, patterns[Winter], a.Description)
	}
}

func TestForecastUnknownSeason(t *testing.T) {
	assert.Equal(t, "fair weather", Forecast(9, 1, 1).Description)
}

func TestSeedForStable(t *testing.T) {
	assert.Equal(t, SeedFor("abc"), SeedFor("abc"))
	assert.NotEqual(t, SeedFor("abc"), SeedFor("abd"))
}
