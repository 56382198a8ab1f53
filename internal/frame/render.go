// SPDX-License-Identifier: MIT
package frame

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cymatics/internal/analysis"
)

// RenderClip renders every frame of session s over a finished recording.
// Analysis and synthesis run in parallel; hold-on-silence is resolved in
// tick order between them, so the result equals a Driver run over a
// ClipSource with a simulated clock. s.Clock is ignored.
func (p *Pipeline) RenderClip(ctx context.Context, samples []float64, sampleRate int, s Session) ([]Frame, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	tuner, err := s.Tuner()
	if err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidSession, sampleRate)
	}

	total := s.FrameCount()
	src := ClipSource{Samples: samples, SampleRate: sampleRate}
	window := p.Analyzer.SegmentSize()
	workers := runtime.GOMAXPROCS(0)

	type peak struct {
		frame analysis.SpectralFrame
		ok    bool
	}
	peaks := make([]peak, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range total {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sf, ok, err := p.Analyzer.Latest(src.Window(s.Elapsed(i), window), sampleRate)
			if err != nil {
				return fmt.Errorf("analysing frame %d: %w", i, err)
			}
			peaks[i] = peak{sf, ok && sf.Frequency > 0}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Hold resolution depends on earlier ticks, so it runs in order.
	held := make([]bool, total)
	var last *peak
	for i := range peaks {
		switch {
		case peaks[i].ok:
			last = &peaks[i]
		case s.HoldOnSilence && last != nil:
			peaks[i] = peak{last.frame, true}
			held[i] = true
		}
	}

	frames := make([]Frame, total)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range total {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			elapsed := s.Elapsed(i)
			if !peaks[i].ok {
				frames[i] = p.silence(i, elapsed)
				return nil
			}
			f, err := p.render(i, elapsed, peaks[i].frame.Frequency, peaks[i].frame.Magnitude, tuner, s.Complexity)
			if err != nil {
				return err
			}
			f.Held = held[i]
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Infof("Rendered %d frames from %d samples", total, len(samples))
	return frames, nil
}
