// SPDX-License-Identifier: MIT
/*
Package pattern synthesises Chladni-style interference fields.

A field is the sum over harmonics n = 1..complexity of

	sin(n·k·x + t) · cos(n·k·y + t) · sin(0.1·n·k·x·y + t) / n

with k = frequency/100, sampled on a square grid and min-max normalised into
[0, 1]. Raising the frequency raises k and therefore the density of the
field for a fixed complexity.
*/
package pattern

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	DefaultGridSize        = 256
	DefaultComplexity      = 3
	DefaultStillComplexity = 4
	DefaultEpsilon         = 1e-8

	// WaveNumberScale divides the input frequency to give the spatial
	// wave number k.
	WaveNumberScale = 100.0
)

var (
	ErrInvalidGridSize   = errors.New("grid size must be at least 2")
	ErrInvalidComplexity = errors.New("complexity must be at least 1")
	ErrInvalidDomain     = errors.New("domain bounds must be finite and increasing")
	ErrInvalidEpsilon    = errors.New("epsilon must be positive and finite")
	ErrNonFinite         = errors.New("frequency and time must be finite")
)

// Pattern is an immutable square grid of values in [0, 1], stored row-major
// with rows along y and columns along x.
type Pattern struct {
	Size       int
	Frequency  float64
	Time       float64
	Complexity int
	Values     []float64
}

// At returns the value at row y, column x.
func (p *Pattern) At(y, x int) float64 { return p.Values[y*p.Size+x] }

// Row returns row y. The slice aliases the pattern and must not be modified.
func (p *Pattern) Row(y int) []float64 { return p.Values[y*p.Size : (y+1)*p.Size] }

// Min returns the smallest value in the grid.
func (p *Pattern) Min() float64 { return floats.Min(p.Values) }

// Max returns the largest value in the grid.
func (p *Pattern) Max() float64 { return floats.Max(p.Values) }

// Uniform reports whether every cell holds the same value.
func (p *Pattern) Uniform() bool { return p.Min() == p.Max() }

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithEpsilon sets the additive guard in the normalisation denominator.
func WithEpsilon(eps float64) Option {
	return func(s *Synthesizer) { s.epsilon = eps }
}

// WithDomain sets the coordinate range covered by both axes.
func WithDomain(lo, hi float64) Option {
	return func(s *Synthesizer) { s.lo, s.hi = lo, hi }
}

// Synthesizer holds the grid coordinates for one resolution. It has no
// mutable state after construction and is safe for concurrent use.
type Synthesizer struct {
	size    int
	lo, hi  float64
	epsilon float64
	coords  []float64
}

// New returns a Synthesizer for a size×size grid over [-π, π] unless
// overridden by opts.
func New(size int, opts ...Option) (*Synthesizer, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidGridSize, size)
	}

	s := &Synthesizer{size: size, lo: -math.Pi, hi: math.Pi, epsilon: DefaultEpsilon}
	for _, opt := range opts {
		opt(s)
	}

	if !(s.lo < s.hi) || math.IsInf(s.lo, 0) || math.IsInf(s.hi, 0) {
		return nil, fmt.Errorf("%w: [%v, %v]", ErrInvalidDomain, s.lo, s.hi)
	}
	if !(s.epsilon > 0) || math.IsInf(s.epsilon, 0) {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidEpsilon, s.epsilon)
	}

	s.coords = floats.Span(make([]float64, size), s.lo, s.hi)
	return s, nil
}

// Size returns the grid edge length.
func (s *Synthesizer) Size() int { return s.size }

// Blank returns the uniform zero grid a constant field normalises to.
func (s *Synthesizer) Blank(t float64) *Pattern {
	return &Pattern{Size: s.size, Time: t, Values: make([]float64, s.size*s.size)}
}

// Chladni builds the normalised field for frequency at time t.
func (s *Synthesizer) Chladni(frequency, t float64, complexity int) (*Pattern, error) {
	if complexity < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidComplexity, complexity)
	}
	if math.IsNaN(frequency) || math.IsInf(frequency, 0) || math.IsNaN(t) || math.IsInf(t, 0) {
		return nil, fmt.Errorf("%w: frequency %v, time %v", ErrNonFinite, frequency, t)
	}

	n := s.size
	field := make([]float64, n*n)
	sx := make([]float64, n)
	cy := make([]float64, n)
	k := frequency / WaveNumberScale

	for h := 1; h <= complexity; h++ {
		nk := float64(h) * k
		weight := 1 / float64(h)
		for i, c := range s.coords {
			sx[i] = math.Sin(nk*c + t)
			cy[i] = math.Cos(nk*c + t)
		}
		for yi, y := range s.coords {
			row := field[yi*n : (yi+1)*n]
			for xi, x := range s.coords {
				row[xi] += sx[xi] * cy[yi] * math.Sin(0.1*nk*x*y+t) * weight
			}
		}
	}

	// Extreme wave numbers can overflow the phase; such cells contribute
	// nothing rather than poisoning the normalisation.
	for i, v := range field {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			field[i] = 0
		}
	}

	lo, hi := floats.Min(field), floats.Max(field)
	floats.AddConst(-lo, field)
	floats.Scale(1/(hi-lo+s.epsilon), field)
	for i, v := range field {
		field[i] = min(max(v, 0), 1)
	}

	return &Pattern{
		Size:       n,
		Frequency:  frequency,
		Time:       t,
		Complexity: complexity,
		Values:     field,
	}, nil
}
