// SPDX-License-Identifier: MIT
package frame

import (
	"context"
	"errors"
	"fmt"
	"sync"

	applog "cymatics/internal/log"
)

var log = applog.Component("driver")

// Driver runs sessions over a Source. Only one session may run at a time;
// Cancel stops it at the next tick boundary.
type Driver struct {
	pipeline   *Pipeline
	source     Source
	sampleRate int
	window     int

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

// NewDriver returns an idle driver reading one analysis segment per tick
// from source.
func NewDriver(p *Pipeline, source Source, sampleRate int) (*Driver, error) {
	if p == nil || p.Analyzer == nil || p.Colors == nil || p.Synth == nil {
		return nil, ErrIncompletePipeline
	}
	if source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidSession)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidSession, sampleRate)
	}
	return &Driver{
		pipeline:   p,
		source:     source,
		sampleRate: sampleRate,
		window:     p.Analyzer.SegmentSize(),
		state:      Idle,
	}, nil
}

// State reports whether a session is running.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Cancel asks the running session to stop. It is a no-op when idle.
func (d *Driver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Run executes session s, emitting FrameCount frames to sink, and returns
// the driver to Idle. Cancel makes Run return nil after the current tick;
// cancelling ctx makes it return ctx.Err().
func (d *Driver) Run(ctx context.Context, s Session, sink Sink) error {
	if err := s.Validate(); err != nil {
		return err
	}
	tuner, err := s.Tuner()
	if err != nil {
		return err
	}
	if sink == nil {
		return fmt.Errorf("%w: nil sink", ErrInvalidSession)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.state == Running {
		d.mu.Unlock()
		return ErrSessionActive
	}
	d.state, d.cancel = Running, cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.state, d.cancel = Idle, nil
		d.mu.Unlock()
	}()

	clock := s.Clock
	if clock == nil {
		clock = SimulatedClock{}
	}

	total := s.FrameCount()
	log.Infof("Session started: %d frames at %.1f fps, base %.2f Hz, tolerance %.2f Hz",
		total, s.FrameRate, s.Base, s.Tolerance)

	var (
		held    bool
		heldHz  float64
		heldMag float64
	)

	for i := range total {
		if err := clock.Wait(sessionCtx, i); err != nil {
			return d.stopped(ctx, i, total)
		}
		if sessionCtx.Err() != nil {
			return d.stopped(ctx, i, total)
		}

		elapsed := s.Elapsed(i)
		samples := d.source.Window(elapsed, d.window)

		sf, ok, err := d.pipeline.Analyzer.Latest(samples, d.sampleRate)
		if err != nil {
			return fmt.Errorf("analysing frame %d: %w", i, err)
		}

		var f Frame
		switch {
		case ok && sf.Frequency > 0:
			f, err = d.pipeline.render(i, elapsed, sf.Frequency, sf.Magnitude, tuner, s.Complexity)
			held, heldHz, heldMag = true, sf.Frequency, sf.Magnitude
		case s.HoldOnSilence && held:
			f, err = d.pipeline.render(i, elapsed, heldHz, heldMag, tuner, s.Complexity)
			f.Held = true
		default:
			f = d.pipeline.silence(i, elapsed)
		}
		if err != nil {
			return err
		}

		log.Debugf("frame %d at %.3fs: %s", i, elapsed, f.Label())
		if err := sink.Emit(f); err != nil {
			return fmt.Errorf("emitting frame %d: %w", i, err)
		}
	}

	log.Infof("Session finished after %d frames", total)
	return nil
}

// stopped distinguishes an explicit Cancel from the caller's context ending.
func (d *Driver) stopped(parent context.Context, i, total int) error {
	if err := parent.Err(); err != nil {
		log.Warnf("Session interrupted at frame %d/%d: %v", i, total, err)
		return err
	}
	log.Infof("Session cancelled at frame %d/%d", i, total)
	return nil
}

// IsStopped reports whether err came from a cancelled or expired context.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
