package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeededIsReproducible(t *testing.T) {
	a := NewSeeded(7)
	b := NewSeeded(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Float64(), b.Float64())
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, 1.0, Fixed(1).Float64())
	assert.False(t, Fixed(1).Float64() < 0.99)
	assert.True(t, Fixed(0).Float64() < 0.01)
}

func TestCryptoRange(t *testing.T) {
	var c Crypto
	for i := 0; i < 100; i++ {
		v := c.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestFromSeedKeepsExplicitSeed(t *testing.T) {
	_, seed := FromSeed(99)
	assert.Equal(t, int64(99), seed)

	_, seed = FromSeed(0)
	assert.NotZero(t, seed)
}
