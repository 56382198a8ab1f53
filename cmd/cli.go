// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cymatics/internal/analysis"
	"cymatics/internal/color"
	"cymatics/internal/config"
	"cymatics/internal/frame"
	applog "cymatics/internal/log"
	"cymatics/internal/pattern"
	"cymatics/pkg/build"
)

var log = applog.Component("cli")

// app is the state shared by every command: the loaded configuration and
// the flags that override it.
type app struct {
	cfg *config.Config

	configPath string
	logLevel   string
	base       float64
	tolerance  float64
	gate       float64
	gateSet    bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	buildInfo := build.GetBuildFlags()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./cymatics.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "",
		"Override the log level (debug, info, warn, error)")
	flags.Float64Var(&a.base, "base", 0,
		"Override the tuning base frequency of A in Hz")
	flags.Float64Var(&a.tolerance, "tolerance", 0,
		"Override the note match tolerance in Hz")

	rootCmd.AddCommand(
		newMatchCommand(a),
		newStillCommand(a),
		newGradientCommand(a),
		newRenderCommand(a),
		newToneCommand(a),
		newDevicesCommand(a),
		newLiveCommand(a),
	)
	return rootCmd
}

// Execute runs the CLI with args. Long-running commands stop when ctx ends.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// load reads the configuration, applies flag overrides and sets the log level.
func (a *app) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.LoadConfig(a.configPath, func(cfg *config.Config) {
		if flags.Changed("log-level") {
			cfg.LogLevel = a.logLevel
		}
		if flags.Changed("base") {
			cfg.Tuning.BaseFrequency = a.base
		}
		if flags.Changed("tolerance") {
			cfg.Tuning.Tolerance = a.tolerance
		}
	})
	if err != nil {
		return err
	}

	level, _ := applog.ParseLevel(cfg.LogLevel)
	applog.SetLevel(level)
	a.cfg = cfg
	log.Debugf("Configuration loaded (base %.2f Hz, tolerance %.2f Hz)",
		cfg.Tuning.BaseFrequency, cfg.Tuning.Tolerance)
	return nil
}

// pipeline assembles the analysis, colour and synthesis stages.
func (a *app) pipeline() (*frame.Pipeline, error) {
	acfg, err := a.cfg.Analysis.AnalyzerConfig()
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(acfg)
	if err != nil {
		return nil, err
	}
	synth, err := pattern.New(a.cfg.Render.GridSize, pattern.WithEpsilon(a.cfg.Render.Epsilon))
	if err != nil {
		return nil, err
	}
	return frame.NewPipeline(analyzer, color.DefaultTable(), synth)
}

// session builds the timed-run parameters from the configuration.
func (a *app) session(clock frame.Clock) (frame.Session, error) {
	ratios, err := a.cfg.Tuning.RatioTable()
	if err != nil {
		return frame.Session{}, err
	}
	r := a.cfg.Render
	return frame.Session{
		Duration:      r.Duration,
		FrameRate:     r.FrameRate,
		Base:          a.cfg.Tuning.BaseFrequency,
		Ratios:        ratios,
		Tolerance:     a.cfg.Tuning.Tolerance,
		Complexity:    r.Complexity,
		HoldOnSilence: r.HoldOnSilence,
		Clock:         clock,
	}, nil
}

// tuner builds the configured note quantiser.
func (a *app) tuner() (frame.Tuner, error) {
	sys, err := a.cfg.Tuning.System()
	if err != nil {
		return frame.Tuner{}, err
	}
	return frame.Tuner{System: sys, Tolerance: a.cfg.Tuning.Tolerance}, nil
}

func printf(cmd *cobra.Command, format string, v ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, v...)
}
