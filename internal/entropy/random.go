// Package entropy supplies the cosmetic randomness used outside the simulation step:
// popup phrase choice and sampling of autonomous steal announcements.
// The step itself never draws from here, so match outcomes stay reproducible.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

// Source yields floats in [0, 1).
type Source interface {
	Float() float64
}

// Crypto draws from crypto/rand. The zero value is ready to use.
type Crypto struct{}

// Float returns a random float64 in [0, 1).
func (Crypto) Float() float64 { return cryptoRandFloat() }

// Seeded is a reproducible source for tests and replays of commentary.
type Seeded struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSeeded creates a deterministic source.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rng: mrand.New(mrand.NewSource(seed))}
}

// Float returns the next float64 in [0, 1).
func (s *Seeded) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Chance reports whether an event with probability p fires. A nil source uses crypto/rand.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return float(src) < p
}

// Pick returns a uniformly chosen index in [0, n). n must be positive.
func Pick(src Source, n int) int {
	i := int(float(src) * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func float(src Source) float64 {
	if src == nil {
		return cryptoRandFloat()
	}
	return src.Float()
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}
