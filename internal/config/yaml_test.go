// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cymatics/internal/analysis"
	"cymatics/internal/tuning"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Tuning.BaseFrequency != 432 || cfg.Tuning.Tolerance != 5 {
		t.Errorf("tuning defaults = %+v", cfg.Tuning)
	}
	if cfg.Render.Epsilon != 1e-8 || cfg.Render.StillComplexity != 4 {
		t.Errorf("render defaults = %+v", cfg.Render)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeTempConfig(t, `
log_level: debug
analysis:
  segment_size: 2048
  overlap: 256
  window: hann
tuning:
  base_frequency: 440
  tolerance: 10
render:
  grid_size: 64
  complexity: 5
  hold_on_silence: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Tuning.BaseFrequency != 440 || cfg.Tuning.Tolerance != 10 {
		t.Errorf("tuning = %+v", cfg.Tuning)
	}
	if cfg.Render.GridSize != 64 || cfg.Render.Complexity != 5 || !cfg.Render.HoldOnSilence {
		t.Errorf("render = %+v", cfg.Render)
	}
	// Unset keys keep their defaults.
	if cfg.Render.FrameRate != 30 || cfg.Audio.SampleRate != 44100 {
		t.Errorf("defaults lost: frame_rate %v, sample_rate %v", cfg.Render.FrameRate, cfg.Audio.SampleRate)
	}

	ac, err := cfg.Analysis.AnalyzerConfig()
	if err != nil {
		t.Fatalf("AnalyzerConfig error: %v", err)
	}
	if ac.SegmentSize != 2048 || ac.Overlap != 256 || ac.Window != analysis.Hann {
		t.Errorf("AnalyzerConfig = %+v", ac)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CYMATICS_BASE_FREQUENCY", "440")
	t.Setenv("CYMATICS_TOLERANCE", "12.5")
	t.Setenv("CYMATICS_WS_ENABLED", "true")
	t.Setenv("CYMATICS_WS_ADDRESS", "0.0.0.0:9000")
	t.Setenv("CYMATICS_UDP_ENABLED", "not-a-bool")

	path := writeTempConfig(t, "tuning:\n  base_frequency: 400\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}

	if cfg.Tuning.BaseFrequency != 440 || cfg.Tuning.Tolerance != 12.5 {
		t.Errorf("env did not override tuning: %+v", cfg.Tuning)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddress != "0.0.0.0:9000" {
		t.Errorf("env did not override websocket: %+v", cfg.Transport)
	}
	if cfg.Transport.UDPEnabled {
		t.Errorf("unparseable bool should be ignored")
	}
}

func TestLoadConfig_OverridesBeforeValidation(t *testing.T) {
	t.Setenv("CYMATICS_TOLERANCE", "12.5")
	path := writeTempConfig(t, "tuning:\n  base_frequency: -1\n")

	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("LoadConfig without override = %v, want ErrInvalidConfig", err)
	}

	var calls int
	cfg, err := LoadConfig(path,
		func(c *Config) { calls++; c.Tuning.BaseFrequency = 440 },
		func(c *Config) { calls++; c.Tuning.Tolerance = 2 },
	)
	if err != nil {
		t.Fatalf("LoadConfig with override error: %v", err)
	}
	if calls != 2 {
		t.Errorf("overrides called %d times, want 2", calls)
	}
	// Overrides win over the environment.
	if cfg.Tuning.BaseFrequency != 440 || cfg.Tuning.Tolerance != 2 {
		t.Errorf("tuning = %+v, want base 440 tolerance 2", cfg.Tuning)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		desc   string
		mutate func(*Config)
	}{
		{"Bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"Zero sample rate", func(c *Config) { c.Audio.SampleRate = 0 }},
		{"Frames per buffer not a power of two", func(c *Config) { c.Audio.FramesPerBuffer = 1000 }},
		{"No input channels", func(c *Config) { c.Audio.InputChannels = 0 }},
		{"Gate threshold too high", func(c *Config) { c.Audio.GateThreshold = 1 }},
		{"Retention shorter than a segment", func(c *Config) { c.Audio.RetentionSeconds = 0.01 }},
		{"Segment too small", func(c *Config) { c.Analysis.SegmentSize = 1 }},
		{"Overlap too large", func(c *Config) { c.Analysis.Overlap = c.Analysis.SegmentSize }},
		{"Unknown window", func(c *Config) { c.Analysis.Window = "kaiser" }},
		{"Zero base", func(c *Config) { c.Tuning.BaseFrequency = 0 }},
		{"Negative tolerance", func(c *Config) { c.Tuning.Tolerance = -1 }},
		{"Partial ratio table", func(c *Config) { c.Tuning.Ratios = map[string]float64{"A": 1} }},
		{"Grid too small", func(c *Config) { c.Render.GridSize = 1 }},
		{"Zero complexity", func(c *Config) { c.Render.Complexity = 0 }},
		{"Zero still complexity", func(c *Config) { c.Render.StillComplexity = 0 }},
		{"Zero frame rate", func(c *Config) { c.Render.FrameRate = 0 }},
		{"Negative duration", func(c *Config) { c.Render.Duration = -1 }},
		{"Zero epsilon", func(c *Config) { c.Render.Epsilon = 0 }},
		{"Zero scale", func(c *Config) { c.Render.Scale = 0 }},
		{"WebSocket without address", func(c *Config) {
			c.Transport.WebSocketEnabled = true
			c.Transport.WebSocketAddress = ""
		}},
		{"UDP without port", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = "localhost"
		}},
		{"UDP grid too large", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Render.GridSize = 256
		}},
		{"Recording without directory", func(c *Config) {
			c.Recording.Enabled = true
			c.Recording.OutputDir = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestTuningSystem(t *testing.T) {
	tc := TuningConfig{BaseFrequency: 432}
	sys, err := tc.System()
	if err != nil {
		t.Fatalf("System error: %v", err)
	}
	if sys.Frequency(tuning.A) != 432 {
		t.Errorf("A = %v, want 432", sys.Frequency(tuning.A))
	}

	tc.Ratios = map[string]float64{"C": 0.5, "D": 0.6, "E": 0.7, "F": 0.8, "G": 0.9, "A": 1, "B": 1.1}
	sys, err = tc.System()
	if err != nil {
		t.Fatalf("System with ratios error: %v", err)
	}
	if got := sys.Frequency(tuning.C); got != 216 {
		t.Errorf("C = %v, want 216", got)
	}
}
