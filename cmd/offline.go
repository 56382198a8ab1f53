// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"cymatics/internal/clip"
	"cymatics/internal/color"
	"cymatics/internal/export"
	"cymatics/internal/frame"
	"cymatics/internal/tuning"
	"cymatics/pkg/utils"
)

func parseFrequency(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !(f >= 0) {
		return 0, fmt.Errorf("invalid frequency %q", s)
	}
	return f, nil
}

func newMatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "match <frequency>...",
		Short: "Quantise frequencies to notes of the tuning system",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tuner, err := a.tuner()
			if err != nil {
				return err
			}
			table := color.DefaultTable()
			for _, arg := range args {
				freq, err := parseFrequency(arg)
				if err != nil {
					return err
				}
				if m, ok := tuner.System.Match(freq, tuner.Tolerance); ok {
					printf(cmd, "%.2f Hz -> %s (target %.2f Hz, off %.2f Hz) %s\n",
						freq, m.Note, m.Target, m.Distance, table.For(m.Note).Hex())
					continue
				}
				n := tuner.System.Nearest(freq)
				printf(cmd, "%.2f Hz -> none within %.2f Hz (nearest %s at %.2f Hz)\n",
					freq, tuner.Tolerance, n.Note, n.Target)
			}
			return nil
		},
	}
}

func newStillCommand(a *app) *cobra.Command {
	var noteName, output string

	cmd := &cobra.Command{
		Use:   "still <frequency>",
		Short: "Render a single pattern image for a frequency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := parseFrequency(args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}

			var note tuning.Note
			if noteName != "" {
				if note, err = tuning.ParseNote(noteName); err != nil {
					return err
				}
			} else {
				tuner, err := a.tuner()
				if err != nil {
					return err
				}
				note = tuner.Note(freq)
			}

			f, err := p.Still(freq, note, a.cfg.Render.StillComplexity)
			if err != nil {
				return err
			}
			if err := export.WriteFrame(output, f, p.Colors, a.cfg.Render.Scale); err != nil {
				return err
			}
			printf(cmd, "%s -> %s\n", f.Label(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&noteName, "note", "n", "",
		"Colour the pattern as this note instead of the matched one")
	cmd.Flags().StringVarP(&output, "output", "o", "still.png", "Output PNG path")
	return cmd
}

func newGradientCommand(a *app) *cobra.Command {
	var steps int
	var fan bool

	cmd := &cobra.Command{
		Use:   "gradient <note>",
		Short: "Print the colour gradient around the note cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, err := tuning.ParseNote(args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("steps") {
				steps = color.StepsForDuration(a.cfg.Render.Duration)
			}

			table := color.DefaultTable()
			var colors []color.RGB
			if fan {
				colors, err = table.Fan(note, steps)
			} else {
				colors, err = table.Gradient(note, steps, nil)
			}
			if err != nil {
				return err
			}

			for _, c := range colors {
				swatch := lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render("  ")
				printf(cmd, "%s %s\n", swatch, c.Hex())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "s", 0,
		"Colours per note transition (default: derived from render.duration)")
	cmd.Flags().BoolVar(&fan, "fan", false,
		"Blend the note towards each other note instead of walking the cycle")
	return cmd
}

// summaryWidth is the pixel width of the render --summary image.
const summaryWidth = 960

func newRenderCommand(a *app) *cobra.Command {
	var outDir string
	var duration float64
	var summary bool

	cmd := &cobra.Command{
		Use:   "render <wav>",
		Short: "Render a WAV recording to a PNG frame sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clip.Load(args[0])
			if err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			s, err := a.session(nil)
			if err != nil {
				return err
			}
			s.Duration = c.Duration()
			if cmd.Flags().Changed("duration") {
				s.Duration = duration
			}

			log.Infof("Rendering %s (%.2fs at %d Hz) to %s", args[0], c.Duration(), c.SampleRate, outDir)
			frames, err := p.RenderClip(cmd.Context(), c.Samples, c.SampleRate, s)
			if err != nil {
				return err
			}
			paths, err := export.WriteSequence(cmd.Context(), outDir, frames, p.Colors, a.cfg.Render.Scale)
			if err != nil {
				return err
			}
			printf(cmd, "Wrote %d frames to %s\n", len(paths), outDir)

			if !summary {
				return nil
			}
			tuner, err := s.Tuner()
			if err != nil {
				return err
			}
			notes, err := p.Summarize(c.Samples, c.SampleRate, tuner, frame.DefaultSummaryNotes)
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				printf(cmd, "No notes matched within %.2f Hz\n", tuner.Tolerance)
			}
			for _, n := range notes {
				printf(cmd, "%s: %d segments (%.2f Hz) %s\n", n.Note, n.Count, n.Target, n.Color.Hex())
			}

			path := filepath.Join(outDir, export.SummaryName)
			if err := export.WritePNG(path, export.Summary(c.Samples, notes, summaryWidth)); err != nil {
				return err
			}
			printf(cmd, "Summary image: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "frames", "Directory for the PNG sequence")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0,
		"Seconds to render (default: the whole clip)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print the most frequent notes of the clip and draw them with the waveform")
	return cmd
}

func newToneCommand(a *app) *cobra.Command {
	var output string
	var duration float64
	var sampleRate int

	cmd := &cobra.Command{
		Use:   "tone <frequency>...",
		Short: "Write a WAV file containing sine tones at the given frequencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freqs := make([]float64, len(args))
			amps := make([]float64, len(args))
			for i, arg := range args {
				f, err := parseFrequency(arg)
				if err != nil {
					return err
				}
				freqs[i] = f
				amps[i] = 0.9 / float64(len(args))
			}
			if !cmd.Flags().Changed("sample-rate") {
				sampleRate = int(a.cfg.Audio.SampleRate)
			}
			if !(duration > 0) || sampleRate <= 0 {
				return fmt.Errorf("duration and sample rate must be positive")
			}

			samples := utils.GenerateChord(int(duration*float64(sampleRate)), float64(sampleRate), freqs, amps)
			if err := clip.Write(output, samples, sampleRate); err != nil {
				return err
			}
			printf(cmd, "Wrote %.2fs of %v Hz to %s\n", duration, freqs, filepath.Clean(output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "tone.wav", "Output WAV path")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 5, "Length in seconds")
	cmd.Flags().IntVarP(&sampleRate, "sample-rate", "s", 0, "Sample rate in Hz (default: audio.sample_rate)")
	return cmd
}
