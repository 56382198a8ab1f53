// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"cymatics/internal/audio"
	"cymatics/internal/buffer"
	"cymatics/internal/config"
	"cymatics/internal/export"
	"cymatics/internal/frame"
	applog "cymatics/internal/log"
	"cymatics/internal/transport"
	"cymatics/internal/transport/udp"
	"cymatics/internal/tui"
)

// warmup is how much audio the live command buffers before the first tick.
const warmup = time.Second

func newDevicesCommand(a *app) *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			if !interactive {
				return audio.ListDevices(cmd.OutOrStdout())
			}

			dev, rate, ok, err := tui.StartDeviceListUI()
			if err != nil || !ok {
				return err
			}

			// Print the audio section ready to paste into config.yaml.
			section := a.cfg.Audio
			section.InputDevice = dev.ID
			section.SampleRate = rate
			section.InputChannels = min(section.InputChannels, dev.MaxInputChannels)
			data, err := yaml.Marshal(struct {
				Audio config.AudioConfig `yaml:"audio"`
			}{section})
			if err != nil {
				return err
			}
			printf(cmd, "%s", data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&interactive, "tui", false, "Pick a device interactively and print its configuration")
	return cmd
}

func newLiveCommand(a *app) *cobra.Command {
	var interactive bool
	var outDir string

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Render patterns from the live audio input",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.gateSet = cmd.Flags().Changed("gate")
			return a.live(cmd.Context(), interactive, outDir)
		},
	}

	cmd.Flags().BoolVar(&interactive, "tui", false, "Show frames in the terminal")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Also write every frame as a PNG to this directory")
	cmd.Flags().Float64Var(&a.gate, "gate", 0,
		"Override audio.gate_threshold; 0 turns the noise gate off")
	return cmd
}

// live captures input, drives a session over the rolling buffer and fans
// frames out to the configured transports.
func (a *app) live(ctx context.Context, interactive bool, outDir string) error {
	cfg := a.cfg

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	buf, err := buffer.NewForDuration(int(cfg.Audio.SampleRate), cfg.Audio.RetentionSeconds)
	if err != nil {
		return err
	}
	engine, err := audio.NewEngine(cfg.Audio, buf)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Errorf("Error closing audio engine: %v", err)
		}
	}()

	if a.gateSet {
		engine.ApplyGate(a.gate)
	}

	if err := engine.StartInputStream(); err != nil {
		return err
	}
	if cfg.Recording.Enabled {
		if err := engine.StartRecording(audio.RecordingPath(cfg.Recording.OutputDir, time.Now())); err != nil {
			return err
		}
	}
	log.Infof("Capturing input (gate %s, recording %t)", gateStatus(engine), engine.IsRecording())

	p, err := a.pipeline()
	if err != nil {
		return err
	}
	var clock frame.Clock
	if cfg.Render.Realtime {
		clock = frame.NewWallClock(cfg.Render.FrameRate)
	}
	s, err := a.session(clock)
	if err != nil {
		return err
	}
	driver, err := frame.NewDriver(p, frame.BufferSource{Buffer: engine.Buffer()}, int(cfg.Audio.SampleRate))
	if err != nil {
		return err
	}

	sinks, closeTransports, err := a.transports()
	if err != nil {
		return err
	}
	defer closeTransports()

	if outDir != "" {
		sinks = append(sinks, frame.SinkFunc(func(f frame.Frame) error {
			return export.WriteFrame(filepath.Join(outDir, export.FrameName(f.Index)), f, p.Colors, cfg.Render.Scale)
		}))
	}

	if err := waitForAudio(ctx, engine.Buffer(), min(int(warmup.Seconds()*cfg.Audio.SampleRate), buf.Cap())); err != nil {
		if frame.IsStopped(err) {
			return nil
		}
		return err
	}

	if !interactive {
		err := driver.Run(ctx, s, transport.Fanout(sinks...))
		if frame.IsStopped(err) {
			return nil
		}
		return err
	}

	frames := make(chan frame.Frame, 1)
	sinks = append(sinks, frame.SinkFunc(func(f frame.Frame) error {
		select {
		case frames <- f:
		default:
			// The viewer only shows the newest frame.
		}
		return nil
	}))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer close(frames)
		err := driver.Run(gctx, s, transport.Fanout(sinks...))
		if frame.IsStopped(err) {
			return nil
		}
		return err
	})

	// Log lines would tear the alternate screen.
	applog.SetOutput(io.Discard)
	defer applog.SetOutput(os.Stderr)

	program := tea.NewProgram(tui.NewFrameViewModel(frames), tea.WithAltScreen(), tea.WithContext(ctx))
	_, uiErr := program.Run()
	driver.Cancel()
	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return uiErr
	}
	return nil
}

func gateStatus(e *audio.Engine) string {
	if !e.GateEnabled() {
		return "off"
	}
	return fmt.Sprintf("%.3f RMS", e.GetGateThreshold())
}

// transports opens every configured frame transport. The returned closer
// shuts them down in reverse order.
func (a *app) transports() ([]frame.Sink, func(), error) {
	tr := a.cfg.Transport
	var sinks []frame.Sink
	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Errorf("Error closing transport: %v", err)
			}
		}
	}
	add := func(t transport.Transport) {
		sinks = append(sinks, transport.Sink(t))
		closers = append(closers, t)
	}

	add(transport.NewLoggingTransport())

	if tr.WebSocketEnabled {
		add(transport.NewWebSocketTransport(tr.WebSocketAddress))
	}

	if tr.UDPEnabled {
		sender, err := udp.NewSender(tr.UDPTargetAddress)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		// Closed after the publisher so its final flush still goes out.
		closers = append(closers, sender)
		publisher, err := udp.NewPublisher(tr.UDPSendInterval, sender)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		publisher.Start()
		add(publisher)
	}

	return sinks, closeAll, nil
}

// waitForAudio blocks until buf holds at least n samples.
func waitForAudio(ctx context.Context, buf *buffer.Rolling, n int) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	log.Infof("Buffering %d samples before the first frame", n)
	for buf.Len() < n {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
