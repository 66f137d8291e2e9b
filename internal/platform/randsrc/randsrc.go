// Package randsrc provides the random source used by the simulated insight
// engines. Production code draws from math/rand's global generator, which
// is safe for concurrent use and independently seeded per process, so no two
// requests share a sequence. Tests inject a Sequence to get fixed draws.
package randsrc

import (
	"math/rand"
	"sync"
)

// Source yields uniform draws. Float64 returns a value in [0, 1); IntN
// returns a value in [0, n).
type Source interface {
	Float64() float64
	IntN(n int) int
}

type global struct{}

func (global) Float64() float64 { return rand.Float64() }
func (global) IntN(n int) int   { return rand.Intn(n) }

// Default returns the concurrency-safe process-wide source.
func Default() Source { return global{} }

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Sequence replays a fixed list of Float64 draws, cycling when exhausted.
// IntN maps the next draw onto [0, n).
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewSequence(values ...float64) *Sequence {
	if len(values) == 0 {
		values = []float64{0}
	}
	return &Sequence{values: values}
}

func (s *Sequence) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func (s *Sequence) IntN(n int) int {
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
