package matrix

import (
	"math/rand/v2"
	"sync"
)

// Generator produces square matrices of a given dimension
type Generator interface {
	Generate(n int) Matrix
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(n int) Matrix

// Generate calls f(n)
func (f GeneratorFunc) Generate(n int) Matrix {
	return f(n)
}

// DefaultMaxValue is the largest entry the random generator produces by default
const DefaultMaxValue = 10

// MaxEntryValue caps the generator bound so products of moderate dimension stay within int64
const MaxEntryValue = 1_000_000

// RandomGenerator fills matrices with uniform entries in [0, maxValue]
type RandomGenerator struct {
	maxValue int64
	rng      *rand.Rand
	mu       sync.Mutex
}

// NewRandomGenerator creates a generator seeded with seed. maxValue is clamped to [0, MaxEntryValue].
func NewRandomGenerator(maxValue int64, seed uint64) *RandomGenerator {
	maxValue = min(max(maxValue, 0), MaxEntryValue)
	return &RandomGenerator{
		maxValue: maxValue,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Generate returns a new n x n matrix
func (g *RandomGenerator) Generate(n int) Matrix {
	g.mu.Lock()
	defer g.mu.Unlock()

	m := New(n, n)
	for i := range m {
		for j := range m[i] {
			m[i][j] = g.rng.Int64N(g.maxValue + 1)
		}
	}
	return m
}

// MaxValue returns the inclusive upper bound of generated entries
func (g *RandomGenerator) MaxValue() int64 {
	return g.maxValue
}
