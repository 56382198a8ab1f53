// SPDX-License-Identifier: MIT
/*
Package analysis extracts the dominant frequency of successive time slices of
an audio window.

The window is cut into segments of SegmentSize samples advancing by
SegmentSize-Overlap. Each segment is detrended, tapered and transformed; the
bin with the largest one-sided amplitude is that slice's dominant frequency.
Bin spacing is sampleRate/SegmentSize, so short segments mean coarse
frequency resolution and the caller must budget a wider note tolerance.

An Analyzer is immutable after construction and safe for concurrent use; FFT
scratch space is pooled per call.
*/
package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultSegmentSize = 256
	DefaultOverlap     = DefaultSegmentSize / 8
)

var (
	ErrInvalidSegment    = errors.New("invalid analysis segment")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)

// SpectralFrame is the dominant frequency of one time slice.
type SpectralFrame struct {
	Time      float64 // Segment centre, seconds from the start of the window.
	Frequency float64 // Dominant frequency in Hz.
	Magnitude float64 // One-sided amplitude of the dominant bin.
}

// Config describes how a window is segmented and tapered.
type Config struct {
	SegmentSize int        // Samples per segment (>= 2).
	Overlap     int        // Samples shared by consecutive segments (0 <= Overlap < SegmentSize).
	Window      WindowFunc // Taper applied to each segment.
	Detrend     bool       // Subtract each segment's mean before the FFT.
}

// DefaultConfig mirrors the conventional spectrogram defaults: 256-sample
// segments, one-eighth overlap, Tukey taper and constant detrend.
func DefaultConfig() Config {
	return Config{
		SegmentSize: DefaultSegmentSize,
		Overlap:     DefaultOverlap,
		Window:      Tukey,
		Detrend:     true,
	}
}

// workspace holds per-call FFT buffers.
type workspace struct {
	fft    *fourier.FFT
	input  []float64
	coeffs []complex128
}

// Analyzer computes per-segment dominant frequencies.
type Analyzer struct {
	segment   int
	step      int
	detrend   bool
	window    []float64
	windowSum float64
	kind      WindowFunc
	pool      sync.Pool
}

// NewAnalyzer validates cfg and precomputes the window coefficients.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.SegmentSize < 2 {
		return nil, fmt.Errorf("%w: segment size must be at least 2, got %d", ErrInvalidSegment, cfg.SegmentSize)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.SegmentSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidSegment, cfg.Overlap, cfg.SegmentSize)
	}

	coeffs, err := coefficients(cfg.SegmentSize, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSegment, err)
	}
	sum := floats.Sum(coeffs)
	if sum <= 0 {
		return nil, fmt.Errorf("%w: %s window of %d samples has no energy", ErrInvalidSegment, cfg.Window, cfg.SegmentSize)
	}

	a := &Analyzer{
		segment:   cfg.SegmentSize,
		step:      cfg.SegmentSize - cfg.Overlap,
		detrend:   cfg.Detrend,
		window:    coeffs,
		windowSum: sum,
		kind:      cfg.Window,
	}
	n := cfg.SegmentSize
	a.pool.New = func() any {
		return &workspace{
			fft:    fourier.NewFFT(n),
			input:  make([]float64, n),
			coeffs: make([]complex128, n/2+1),
		}
	}
	return a, nil
}

// SegmentSize returns the number of samples per analysis segment.
func (a *Analyzer) SegmentSize() int { return a.segment }

// Step returns the hop between consecutive segment starts.
func (a *Analyzer) Step() int { return a.step }

// Window returns the configured taper.
func (a *Analyzer) Window() WindowFunc { return a.kind }

// Resolution returns the bin spacing in Hz at sampleRate.
func (a *Analyzer) Resolution(sampleRate int) float64 {
	return float64(sampleRate) / float64(a.segment)
}

// Segments returns how many full segments fit in n samples.
func (a *Analyzer) Segments(n int) int {
	if n < a.segment {
		return 0
	}
	return (n-a.segment)/a.step + 1
}

// DominantFrequencies returns one SpectralFrame per segment, ordered by time.
// A window shorter than one segment yields an empty slice, not an error.
func (a *Analyzer) DominantFrequencies(samples []float64, sampleRate int) ([]SpectralFrame, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSampleRate, sampleRate)
	}

	count := a.Segments(len(samples))
	frames := make([]SpectralFrame, 0, count)
	if count == 0 {
		return frames, nil
	}

	ws := a.pool.Get().(*workspace)
	defer a.pool.Put(ws)

	rate := float64(sampleRate)
	for i := range count {
		start := i * a.step
		bin, mag := a.peak(ws, samples[start:start+a.segment])
		frames = append(frames, SpectralFrame{
			Time:      (float64(start) + float64(a.segment)/2) / rate,
			Frequency: float64(bin) * rate / float64(a.segment),
			Magnitude: mag,
		})
	}
	return frames, nil
}

// Latest returns the most recent SpectralFrame of samples, if any.
func (a *Analyzer) Latest(samples []float64, sampleRate int) (SpectralFrame, bool, error) {
	frames, err := a.DominantFrequencies(samples, sampleRate)
	if err != nil || len(frames) == 0 {
		return SpectralFrame{}, false, err
	}
	return frames[len(frames)-1], true, nil
}

// peak transforms one segment and returns the index and amplitude of the
// strongest bin. Ties resolve to the lowest bin.
func (a *Analyzer) peak(ws *workspace, segment []float64) (int, float64) {
	copy(ws.input, segment)
	if a.detrend {
		mean := stat.Mean(ws.input, nil)
		floats.AddConst(-mean, ws.input)
	}
	floats.Mul(ws.input, a.window)

	ws.fft.Coefficients(ws.coeffs, ws.input)

	nyquist := -1
	if a.segment%2 == 0 {
		nyquist = a.segment / 2
	}

	best, bestMag := 0, -1.0
	for k, c := range ws.coeffs {
		mag := cmplx.Abs(c) / a.windowSum
		if k != 0 && k != nyquist {
			mag *= 2 // fold the negative-frequency half
		}
		if mag > bestMag {
			best, bestMag = k, mag
		}
	}
	return best, bestMag
}
