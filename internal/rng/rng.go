// Package rng is the reproducible randomness used by the simulators and the
// pricer. Every value is a pure function of an integer seed; nothing here is
// suitable for anything that must be unpredictable.
package rng

import (
	"hash/fnv"
	"math"
)

// seedModulus keeps composite seeds small enough that math.Sin stays well
// conditioned.
const seedModulus = 1_000_000_007

// Rand returns frac(sin(seed) * 10000), a value in [0, 1).
func Rand(seed float64) float64 {
	x := math.Sin(seed) * 10000
	f := x - math.Floor(x)
	if f >= 1 || f < 0 || math.IsNaN(f) {
		return 0
	}
	return f
}

// Combine folds several integers into one seed. The result is order
// sensitive and always in [0, seedModulus).
func Combine(parts ...int64) int64 {
	h := int64(17)
	for _, p := range parts {
		p %= seedModulus
		if p < 0 {
			p += seedModulus
		}
		h = (h*31 + p) % seedModulus
	}
	return h
}

// HashString maps a string onto a seed component.
func HashString(s string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum32())
}

// Source is a counter-stepped stream over Rand. The zero value is not useful;
// use New.
type Source struct {
	seed int64
	n    int64
}

// New returns a stream rooted at seed.
func New(seed int64) *Source {
	return &Source{seed: seed}
}

// Seed returns the root seed of the stream.
func (s *Source) Seed() int64 { return s.seed }

// Fork derives an independent stream keyed by salt. Forking does not advance
// the parent.
func (s *Source) Fork(salt int64) *Source {
	return New(Combine(s.seed, salt))
}

// Float64 returns the next value in [0, 1).
func (s *Source) Float64() float64 {
	s.n++
	return Rand(float64(s.seed) + float64(s.n)*0.7071)
}

// Between returns a value in [lo, hi).
func (s *Source) Between(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

// Intn returns a value in [0, n). It returns 0 when n <= 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(s.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// IntRange returns a value in [lo, hi], both inclusive.
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.Intn(hi-lo+1)
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	return s.Float64() < p
}

// Shuffle permutes n elements with Fisher-Yates, calling swap like
// math/rand.Shuffle.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		swap(i, j)
	}
}

// Weighted picks an index with probability proportional to its weight.
// Non-positive weights are never picked unless every weight is.
func (s *Source) Weighted(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return 0
	}
	target := s.Float64() * total
	acc := 0.0
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if target < acc {
			return i
		}
	}
	return last
}
