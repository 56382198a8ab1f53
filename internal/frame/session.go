// SPDX-License-Identifier: MIT
package frame

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"cymatics/internal/buffer"
	"cymatics/internal/tuning"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionActive  = errors.New("a session is already running")
)

const DefaultFrameRate = 30.0

// Session holds the parameters of one timed run.
type Session struct {
	Duration   float64 // Seconds; frames are produced for [0, Duration).
	FrameRate  float64 // Frames per second.
	Base       float64 // Tuning reference frequency in Hz.
	Ratios     *tuning.Ratios
	Tolerance  float64 // Match tolerance in Hz.
	Complexity int

	// HoldOnSilence repeats the last frequency and note when a tick has no
	// dominant frequency, instead of emitting a silence frame.
	HoldOnSilence bool

	// Clock paces the ticks. Nil runs as fast as possible.
	Clock Clock
}

// Validate reports the first invalid parameter.
func (s Session) Validate() error {
	switch {
	case !(s.Duration >= 0) || math.IsInf(s.Duration, 0):
		return fmt.Errorf("%w: duration %v", ErrInvalidSession, s.Duration)
	case !(s.FrameRate > 0) || math.IsInf(s.FrameRate, 0):
		return fmt.Errorf("%w: frame rate %v", ErrInvalidSession, s.FrameRate)
	case !(s.Tolerance >= 0):
		return fmt.Errorf("%w: tolerance %v", ErrInvalidSession, s.Tolerance)
	case s.Complexity < 1:
		return fmt.Errorf("%w: complexity %d", ErrInvalidSession, s.Complexity)
	}
	return nil
}

// Tuner builds the tuning system for the session.
func (s Session) Tuner() (Tuner, error) {
	ratios := tuning.StandardRatios
	if s.Ratios != nil {
		ratios = *s.Ratios
	}
	sys, err := tuning.NewSystemWithRatios(s.Base, ratios)
	if err != nil {
		return Tuner{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return Tuner{System: sys, Tolerance: s.Tolerance}, nil
}

// frameSlack absorbs rounding in Duration × FrameRate, so 0.29 s at
// 100 fps still counts 29 frames.
const frameSlack = 1e-9

// FrameCount is ⌊Duration × FrameRate⌋.
func (s Session) FrameCount() int {
	return int(math.Floor(s.Duration*s.FrameRate + frameSlack))
}

// Elapsed returns the session time of frame i.
func (s Session) Elapsed(i int) float64 {
	return float64(i) / s.FrameRate
}

// State is the driver's lifecycle state.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Clock blocks until frame i of a session is due.
type Clock interface {
	Wait(ctx context.Context, i int) error
}

// SimulatedClock never waits; frame i is simply due at i/fps.
type SimulatedClock struct{}

func (SimulatedClock) Wait(ctx context.Context, _ int) error { return ctx.Err() }

// WallClock paces frames against real time from the first Wait.
type WallClock struct {
	FrameRate float64

	start time.Time
}

// NewWallClock returns a clock ticking at fps frames per second.
func NewWallClock(fps float64) *WallClock {
	return &WallClock{FrameRate: fps}
}

func (c *WallClock) Wait(ctx context.Context, i int) error {
	if c.start.IsZero() || i == 0 {
		c.start = time.Now()
	}
	due := c.start.Add(time.Duration(float64(i) / c.FrameRate * float64(time.Second)))
	d := time.Until(due)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Source supplies the samples analysed at a given session time.
type Source interface {
	Window(elapsed float64, n int) []float64
}

// BufferSource reads the most recent samples of a live rolling buffer and
// ignores the session time.
type BufferSource struct {
	Buffer *buffer.Rolling
}

func (s BufferSource) Window(_ float64, n int) []float64 {
	return s.Buffer.Snapshot(n)
}

// ClipSource reads a finished recording, centring each window on the
// elapsed time and clamping it to the clip bounds.
type ClipSource struct {
	Samples    []float64
	SampleRate int
}

func (s ClipSource) Window(elapsed float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if len(s.Samples) <= n {
		return s.Samples
	}
	start := int(elapsed*float64(s.SampleRate)) - n/2
	start = min(max(start, 0), len(s.Samples)-n)
	return s.Samples[start : start+n]
}

// Sink receives frames in tick order.
type Sink interface {
	Emit(Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame) error

func (f SinkFunc) Emit(fr Frame) error { return f(fr) }

// Collector keeps every emitted frame.
type Collector struct {
	Frames []Frame
}

func (c *Collector) Emit(f Frame) error {
	c.Frames = append(c.Frames, f)
	return nil
}
