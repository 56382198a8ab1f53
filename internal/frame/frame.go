// SPDX-License-Identifier: MIT
/*
Package frame turns audio windows into renderable frames.

A Pipeline chains the pure stages (spectral analysis, note quantisation,
colour lookup, pattern synthesis). A Driver runs a timed session over a
Source and emits one Frame per tick to a Sink. RenderClip produces the same
frames for a finished recording in parallel.
*/
package frame

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"cymatics/internal/analysis"
	"cymatics/internal/color"
	"cymatics/internal/pattern"
	"cymatics/internal/tuning"
)

// Frame is the output of one tick.
type Frame struct {
	Index     int
	Time      float64 // Elapsed session time in seconds.
	Frequency float64 // Dominant frequency in Hz; 0 when Silent.
	Magnitude float64
	Silent    bool // No dominant frequency was available.
	Held      bool // Frequency was carried over from an earlier tick.
	Note      tuning.Note
	Color     color.RGB
	Pattern   *pattern.Pattern
}

// Label renders the frame title, e.g. "Frequency: 432.0 Hz (A) - #FFFFFF".
func (f Frame) Label() string {
	if f.Silent {
		return fmt.Sprintf("Frequency: none (%s) - %s", f.Note, f.Color.Hex())
	}
	return fmt.Sprintf("Frequency: %.1f Hz (%s) - %s", f.Frequency, f.Note, f.Color.Hex())
}

var ErrIncompletePipeline = errors.New("pipeline requires analyzer, colour table and synthesizer")

// Pipeline bundles the session-independent stages. All stages are pure, so
// one Pipeline may serve concurrent callers.
type Pipeline struct {
	Analyzer *analysis.Analyzer
	Colors   *color.Table
	Synth    *pattern.Synthesizer
}

// NewPipeline checks that every stage is present.
func NewPipeline(a *analysis.Analyzer, colors *color.Table, synth *pattern.Synthesizer) (*Pipeline, error) {
	if a == nil || colors == nil || synth == nil {
		return nil, ErrIncompletePipeline
	}
	return &Pipeline{Analyzer: a, Colors: colors, Synth: synth}, nil
}

// Tuner quantises frequencies against a tuning system.
type Tuner struct {
	System    *tuning.System
	Tolerance float64
}

// Note returns the matched note, or tuning.None.
func (t Tuner) Note(frequency float64) tuning.Note {
	m, _ := t.System.Match(frequency, t.Tolerance)
	return m.Note
}

// render builds a non-silent frame.
func (p *Pipeline) render(index int, elapsed, frequency, magnitude float64, tuner Tuner, complexity int) (Frame, error) {
	note := tuner.Note(frequency)
	pat, err := p.Synth.Chladni(frequency, elapsed, complexity)
	if err != nil {
		return Frame{}, fmt.Errorf("synthesising frame %d: %w", index, err)
	}
	return Frame{
		Index:     index,
		Time:      elapsed,
		Frequency: frequency,
		Magnitude: magnitude,
		Note:      note,
		Color:     p.Colors.For(note),
		Pattern:   pat,
	}, nil
}

func (p *Pipeline) silence(index int, elapsed float64) Frame {
	return Frame{
		Index:   index,
		Time:    elapsed,
		Silent:  true,
		Note:    tuning.None,
		Color:   color.Black,
		Pattern: p.Synth.Blank(elapsed),
	}
}

// Still renders a single frame at time 0 for an explicit frequency and note,
// independent of any session.
func (p *Pipeline) Still(frequency float64, note tuning.Note, complexity int) (Frame, error) {
	pat, err := p.Synth.Chladni(frequency, 0, complexity)
	if err != nil {
		return Frame{}, err
	}
	if !note.Valid() {
		note = tuning.None
	}
	return Frame{
		Frequency: frequency,
		Note:      note,
		Color:     p.Colors.For(note),
		Pattern:   pat,
	}, nil
}

// DefaultSummaryNotes is how many notes Summarize reports by default.
const DefaultSummaryNotes = 3

// NoteSummary is one entry of a clip summary.
type NoteSummary struct {
	Note   tuning.Note
	Count  int     // Segments whose dominant frequency matched Note.
	Target float64 // Target frequency of Note in Hz.
	Color  color.RGB
}

// Summarize counts the matched dominant note of every analysis segment and
// returns the top entries by count, ties in canonical order. top < 1 uses
// DefaultSummaryNotes.
func (p *Pipeline) Summarize(samples []float64, sampleRate int, tuner Tuner, top int) ([]NoteSummary, error) {
	frames, err := p.Analyzer.DominantFrequencies(samples, sampleRate)
	if err != nil {
		return nil, err
	}
	if top < 1 {
		top = DefaultSummaryNotes
	}

	var counts [tuning.NoteCount]int
	for _, f := range frames {
		if n := tuner.Note(f.Frequency); n.Valid() {
			counts[n]++
		}
	}

	out := make([]NoteSummary, 0, tuning.NoteCount)
	for _, n := range tuning.Canonical {
		if counts[n] == 0 {
			continue
		}
		out = append(out, NoteSummary{
			Note:   n,
			Count:  counts[n],
			Target: tuner.System.Frequency(n),
			Color:  p.Colors.For(n),
		})
	}
	slices.SortStableFunc(out, func(a, b NoteSummary) int { return cmp.Compare(b.Count, a.Count) })

	if len(out) > top {
		out = out[:top]
	}
	return out, nil
}
