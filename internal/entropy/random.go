// Package entropy isolates every stochastic draw in the simulation behind a
// seedable source so ticks can be replayed exactly.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// Seeded is a deterministic Source. Safe for concurrent use.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded returns a deterministic source for the given seed.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float64 returns the next draw.
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Crypto draws from crypto/rand.
type Crypto struct{}

// Float64 returns a uniform float using 53 random bits.
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// Fixed always returns the same value. Fixed(1) never passes a `draw < p`
// check, Fixed(0) always does.
type Fixed float64

// Float64 returns f.
func (f Fixed) Float64() float64 { return float64(f) }

// NewSeed returns a random seed from crypto/rand.
func NewSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 42
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
}

// FromSeed returns a seeded source, or a fresh random seed when seed is 0.
// The effective seed is returned so it can be logged and replayed.
func FromSeed(seed int64) (*Seeded, int64) {
	if seed == 0 {
		seed = NewSeed()
	}
	return NewSeeded(seed), seed
}

func cryptoRandFloat() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
