// SPDX-License-Identifier: MIT
/*
Package tuning maps frequencies to the seven natural notes of a tuning system
derived from a base (A) frequency and a fixed ratio table.

Matching picks the note with the smallest absolute distance to the input
among those within tolerance. Equal distances resolve to the earlier note in
canonical order (C D E F G A B), never to table iteration order.
*/
package tuning

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Note identifies one of the seven natural notes.
type Note int8

const (
	C Note = iota
	D
	E
	F
	G
	A
	B

	// None means no note matched.
	None Note = -1
)

// NoteCount is the number of canonical notes.
const NoteCount = 7

// Canonical lists the notes in canonical order.
var Canonical = [NoteCount]Note{C, D, E, F, G, A, B}

var noteNames = [NoteCount]string{"C", "D", "E", "F", "G", "A", "B"}

// Valid reports whether n is one of the canonical notes.
func (n Note) Valid() bool { return n >= C && n <= B }

func (n Note) String() string {
	if !n.Valid() {
		return "none"
	}
	return noteNames[n]
}

// ParseNote accepts a note letter in either case.
func ParseNote(s string) (Note, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range noteNames {
		if s == name {
			return Note(i), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownNote, s)
}

const (
	DefaultBaseFrequency = 432.0
	DefaultTolerance     = 5.0
)

var (
	ErrInvalidBase  = errors.New("base frequency must be positive and finite")
	ErrInvalidRatio = errors.New("invalid tuning ratio")
	ErrEmptyTable   = errors.New("tuning table is empty")
	ErrUnknownNote  = errors.New("unknown note")
)

// Ratios holds each note's frequency relative to A, indexed by Note.
type Ratios [NoteCount]float64

// StandardRatios are the equal-temperament fourth-octave frequencies
// relative to A4 = 440 Hz.
var StandardRatios = Ratios{
	C: 261.63 / 440.0,
	D: 293.66 / 440.0,
	E: 329.63 / 440.0,
	F: 349.23 / 440.0,
	G: 392.00 / 440.0,
	A: 440.00 / 440.0,
	B: 493.88 / 440.0,
}

// ParseRatios builds a ratio table from note-letter keys. All seven notes
// must be present.
func ParseRatios(m map[string]float64) (Ratios, error) {
	var r Ratios
	if len(m) == 0 {
		return r, ErrEmptyTable
	}

	seen := 0
	for key, v := range m {
		n, err := ParseNote(key)
		if err != nil {
			return r, fmt.Errorf("%w: %w", ErrInvalidRatio, err)
		}
		r[n] = v
		seen |= 1 << n
	}
	for _, n := range Canonical {
		if seen&(1<<n) == 0 {
			return r, fmt.Errorf("%w: missing note %s", ErrInvalidRatio, n)
		}
	}
	return r, nil
}

// System is an immutable tuning: the target frequency of every note.
type System struct {
	base  float64
	freqs [NoteCount]float64
}

// NewSystem builds a tuning from base using StandardRatios.
func NewSystem(base float64) (*System, error) {
	return NewSystemWithRatios(base, StandardRatios)
}

// NewSystemWithRatios builds a tuning from base and an explicit ratio table.
// Ratios must be positive, finite and yield distinct frequencies.
func NewSystemWithRatios(base float64, ratios Ratios) (*System, error) {
	if !(base > 0) || math.IsInf(base, 0) {
		return nil, fmt.Errorf("%w, got %v", ErrInvalidBase, base)
	}

	s := &System{base: base}
	for _, n := range Canonical {
		r := ratios[n]
		if !(r > 0) || math.IsInf(r, 0) {
			return nil, fmt.Errorf("%w: %s ratio %v", ErrInvalidRatio, n, r)
		}
		s.freqs[n] = r * base
		for _, prev := range Canonical[:n] {
			if s.freqs[prev] == s.freqs[n] {
				return nil, fmt.Errorf("%w: %s and %s share %.4f Hz", ErrInvalidRatio, prev, n, s.freqs[n])
			}
		}
	}
	return s, nil
}

// Base returns the reference frequency the system was built from.
func (s *System) Base() float64 { return s.base }

// Frequency returns the target frequency of n, or 0 for an invalid note.
func (s *System) Frequency(n Note) float64 {
	if !n.Valid() {
		return 0
	}
	return s.freqs[n]
}

// Frequencies returns every target frequency in canonical order.
func (s *System) Frequencies() [NoteCount]float64 { return s.freqs }

// Match is a successful quantisation.
type Match struct {
	Note     Note
	Target   float64 // Target frequency of Note in Hz.
	Distance float64 // |input - Target| in Hz.
}

// Match returns the note nearest to frequency among those whose target lies
// within tolerance Hz. ok is false when nothing qualifies, including for a
// negative tolerance or a non-finite frequency.
func (s *System) Match(frequency, tolerance float64) (Match, bool) {
	m := s.Nearest(frequency)
	if m.Note == None || !(m.Distance <= tolerance) {
		return Match{Note: None}, false
	}
	return m, true
}

// Nearest returns the closest note regardless of tolerance. A non-finite
// frequency yields a Match with Note None.
func (s *System) Nearest(frequency float64) Match {
	best := Match{Note: None, Distance: math.Inf(1)}
	if math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return best
	}
	for _, n := range Canonical {
		d := math.Abs(frequency - s.freqs[n])
		// Strict comparison keeps the canonically earlier note on ties.
		if d < best.Distance {
			best = Match{Note: n, Target: s.freqs[n], Distance: d}
		}
	}
	return best
}
