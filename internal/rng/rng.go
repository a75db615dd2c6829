// Package rng provides the uniform symbol-draw source for spin resolution.
//
// The production source seeds math/rand from the OS entropy pool and fails
// fast if that read fails — the engine never degrades to a predictable
// default seed silently. Tests inject a fixed seed or a stub Source to force
// specific draws.
package rng

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
)

// Source produces uniformly distributed integers in [0, bound).
// Implementations must be safe for concurrent use.
type Source interface {
	Next(bound int) int
}

// LockedSource is a mutex-guarded math/rand source.
type LockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a source seeded from the OS entropy pool.
func New() (*LockedSource, error) {
	var seed int64
	if err := binary.Read(cryptorand.Reader, binary.LittleEndian, &seed); err != nil {
		return nil, fmt.Errorf("rng: read entropy: %w", err)
	}
	return NewSeeded(seed), nil
}

// NewSeeded returns a source with an explicit seed, for deterministic tests.
func NewSeeded(seed int64) *LockedSource {
	return &LockedSource{r: rand.New(rand.NewSource(seed))}
}

// Next returns a uniform integer in [0, bound). bound must be positive;
// callers guarantee this via config validation.
func (s *LockedSource) Next(bound int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(bound)
}
