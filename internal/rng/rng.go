// Package rng provides the randomness used by every probabilistic operation.
//
// Production code uses Default, which draws from crypto/rand. Tests and
// replays use NewSeeded so that outcomes are reproducible.
package rng

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source is the randomness abstraction injected into engines.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.r.IntN(n)
}

// cryptoSource feeds math/rand/v2 with bytes from crypto/rand.
type cryptoSource struct{}

func (cryptoSource) Uint64() uint64 {
	var buf [8]byte

	_, err := cryptorand.Read(buf[:])
	if err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		panic("rng: crypto source unavailable: " + err.Error())
	}

	return binary.BigEndian.Uint64(buf[:])
}

// Default returns a Source backed by crypto/rand.
func Default() Source {
	return &lockedRand{r: rand.New(cryptoSource{})}
}

// NewSeeded returns a reproducible PCG Source.
func NewSeeded(seed uint64) Source {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Between returns a uniform integer in [lo, hi].
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}

	return lo + src.IntN(hi-lo+1)
}

// Chance reports whether a trial with probability p succeeds.
func Chance(src Source, p float64) bool {
	if p <= 0 {
		return false
	}

	return src.Float64() < p
}
