// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cymatics/internal/analysis"
	applog "cymatics/internal/log"
	"cymatics/internal/pattern"
	"cymatics/internal/transport/udp"
	"cymatics/internal/tuning"
	"cymatics/pkg/bitint"
)

var log = applog.Component("configuration")

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Live capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Tuning    TuningConfig    `yaml:"tuning"`    // Note quantisation settings.
	Render    RenderConfig    `yaml:"render"`    // Pattern and session settings.
	Transport TransportConfig `yaml:"transport"` // Frame streaming settings.
	Recording RecordingConfig `yaml:"recording"` // Input recording settings.
}

// AudioConfig holds settings related to live audio input.
type AudioConfig struct {
	InputDevice      int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate       float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer  int     `yaml:"frames_per_buffer"` // Frames per PortAudio callback; must be a power of two.
	InputChannels    int     `yaml:"input_channels"`    // Channels captured before the mono downmix.
	LowLatency       bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	RetentionSeconds float64 `yaml:"retention_seconds"` // Seconds of audio kept in the rolling buffer.
	GateThreshold    float64 `yaml:"gate_threshold"`    // RMS below which a batch is stored as silence (0 disables).
}

// AnalysisConfig holds the short-time spectrum parameters.
type AnalysisConfig struct {
	SegmentSize int    `yaml:"segment_size"` // Samples per analysis segment; bins are sample_rate/segment_size apart.
	Overlap     int    `yaml:"overlap"`      // Samples shared by consecutive segments.
	Window      string `yaml:"window"`       // Window function name (e.g., "tukey", "hann").
	Detrend     bool   `yaml:"detrend"`      // Subtract each segment's mean before the FFT.
}

// TuningConfig holds the tuning system and match tolerance.
type TuningConfig struct {
	BaseFrequency float64            `yaml:"base_frequency"`   // Frequency of A in Hz.
	Tolerance     float64            `yaml:"tolerance"`        // Maximum match distance in Hz.
	Ratios        map[string]float64 `yaml:"ratios,omitempty"` // Optional ratio table keyed by note letter, relative to A.
}

// RenderConfig holds pattern synthesis and session parameters.
type RenderConfig struct {
	GridSize        int     `yaml:"grid_size"`        // Pattern edge length in cells.
	Complexity      int     `yaml:"complexity"`       // Harmonics per animated frame.
	StillComplexity int     `yaml:"still_complexity"` // Harmonics for single still images.
	FrameRate       float64 `yaml:"frame_rate"`       // Frames per second.
	Duration        float64 `yaml:"duration"`         // Session length in seconds.
	Epsilon         float64 `yaml:"epsilon"`          // Normalisation guard for constant fields.
	HoldOnSilence   bool    `yaml:"hold_on_silence"`  // Repeat the last note instead of emitting silence frames.
	Realtime        bool    `yaml:"realtime"`         // Pace live sessions against the wall clock.
	Scale           int     `yaml:"scale"`            // PNG pixels per grid cell.
}

// TransportConfig holds settings related to sending frames over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve frames as JSON over a WebSocket.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the WebSocket server.
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send binary frame datagrams.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record live input to WAV.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:      -1, // -1 for default device.
			SampleRate:       44100,
			FramesPerBuffer:  1024,
			InputChannels:    1,
			LowLatency:       false,
			RetentionSeconds: 10,
			GateThreshold:    0,
		},
		Analysis: AnalysisConfig{
			SegmentSize: 4096,
			Overlap:     512,
			Window:      "tukey",
			Detrend:     true,
		},
		Tuning: TuningConfig{
			BaseFrequency: tuning.DefaultBaseFrequency,
			Tolerance:     tuning.DefaultTolerance,
		},
		Render: RenderConfig{
			GridSize:        pattern.DefaultGridSize,
			Complexity:      pattern.DefaultComplexity,
			StillComplexity: pattern.DefaultStillComplexity,
			FrameRate:       30,
			Duration:        5,
			Epsilon:         pattern.DefaultEpsilon,
			HoldOnSilence:   false,
			Realtime:        true,
			Scale:           2,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: "127.0.0.1:8080",
			UDPEnabled:       false,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  udp.DefaultInterval,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides, then each override in order (command-line flags), and validates
// the final configuration once.
func LoadConfig(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "cymatics.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		log.Debugf("Loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()
	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, v...))
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

// Validate rejects configurations the pipeline could not run with.
func (c *Config) Validate() error {
	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		return invalid("log_level %q", c.LogLevel)
	}

	a := c.Audio
	switch {
	case !positive(a.SampleRate):
		return invalid("audio.sample_rate must be positive, got %v", a.SampleRate)
	case !bitint.IsPowerOfTwo(a.FramesPerBuffer):
		return invalid("audio.frames_per_buffer must be a power of two, got %d (try %d)",
			a.FramesPerBuffer, bitint.NextPowerOfTwo(a.FramesPerBuffer))
	case a.InputChannels < 1:
		return invalid("audio.input_channels must be at least 1, got %d", a.InputChannels)
	case !positive(a.RetentionSeconds):
		return invalid("audio.retention_seconds must be positive, got %v", a.RetentionSeconds)
	case a.GateThreshold < 0 || a.GateThreshold >= 1:
		return invalid("audio.gate_threshold must be in [0, 1), got %v", a.GateThreshold)
	}

	if _, err := c.Analysis.AnalyzerConfig(); err != nil {
		return err
	}
	if int(a.RetentionSeconds*a.SampleRate) < c.Analysis.SegmentSize {
		return invalid("audio.retention_seconds holds fewer samples than analysis.segment_size")
	}

	t := c.Tuning
	if !positive(t.BaseFrequency) {
		return invalid("tuning.base_frequency must be positive, got %v", t.BaseFrequency)
	}
	if !(t.Tolerance >= 0) {
		return invalid("tuning.tolerance must be non-negative, got %v", t.Tolerance)
	}
	if bin := a.SampleRate / float64(c.Analysis.SegmentSize); t.Tolerance > 0 && bin > 4*t.Tolerance {
		log.Warnf("analysis bins are %.2f Hz apart, too coarse for the %.2f Hz tolerance; segment_size %d would resolve it",
			bin, t.Tolerance, bitint.SegmentForResolution(a.SampleRate, t.Tolerance))
	}
	if _, err := t.System(); err != nil {
		return err
	}

	r := c.Render
	switch {
	case r.GridSize < 2:
		return invalid("render.grid_size must be at least 2, got %d", r.GridSize)
	case r.Complexity < 1:
		return invalid("render.complexity must be at least 1, got %d", r.Complexity)
	case r.StillComplexity < 1:
		return invalid("render.still_complexity must be at least 1, got %d", r.StillComplexity)
	case !positive(r.FrameRate):
		return invalid("render.frame_rate must be positive, got %v", r.FrameRate)
	case !(r.Duration >= 0) || math.IsInf(r.Duration, 0):
		return invalid("render.duration must be non-negative, got %v", r.Duration)
	case !positive(r.Epsilon):
		return invalid("render.epsilon must be positive, got %v", r.Epsilon)
	case r.Scale < 1:
		return invalid("render.scale must be at least 1, got %d", r.Scale)
	}

	tr := c.Transport
	if tr.WebSocketEnabled && tr.WebSocketAddress == "" {
		return invalid("transport.websocket_address must be set when the WebSocket is enabled")
	}
	if tr.UDPEnabled {
		if !strings.Contains(tr.UDPTargetAddress, ":") {
			return invalid("transport.udp_target_address '%s' appears invalid (missing port?)", tr.UDPTargetAddress)
		}
		if tr.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
		if r.GridSize > udp.MaxGridSize {
			return invalid("render.grid_size %d exceeds the UDP limit of %d", r.GridSize, udp.MaxGridSize)
		}
	}

	if c.Recording.Enabled && c.Recording.OutputDir == "" {
		return invalid("recording.output_dir must be set when recording is enabled")
	}

	return nil
}

// AnalyzerConfig converts the analysis section for analysis.NewAnalyzer.
func (a AnalysisConfig) AnalyzerConfig() (analysis.Config, error) {
	w, err := analysis.ParseWindowFunc(a.Window)
	if err != nil {
		return analysis.Config{}, fmt.Errorf("%w: analysis.window: %w", ErrInvalidConfig, err)
	}
	if a.SegmentSize < 2 || a.Overlap < 0 || a.Overlap >= a.SegmentSize {
		return analysis.Config{}, invalid("analysis.segment_size %d / overlap %d", a.SegmentSize, a.Overlap)
	}
	return analysis.Config{SegmentSize: a.SegmentSize, Overlap: a.Overlap, Window: w, Detrend: a.Detrend}, nil
}

// RatioTable returns the configured ratio table, or nil for the standard one.
func (t TuningConfig) RatioTable() (*tuning.Ratios, error) {
	if len(t.Ratios) == 0 {
		return nil, nil
	}
	r, err := tuning.ParseRatios(t.Ratios)
	if err != nil {
		return nil, fmt.Errorf("%w: tuning.ratios: %w", ErrInvalidConfig, err)
	}
	return &r, nil
}

// System builds the configured tuning system.
func (t TuningConfig) System() (*tuning.System, error) {
	ratios := tuning.StandardRatios
	r, err := t.RatioTable()
	if err != nil {
		return nil, err
	}
	if r != nil {
		ratios = *r
	}
	sys, err := tuning.NewSystemWithRatios(t.BaseFrequency, ratios)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return sys, nil
}

// applyEnvOverrides lets CYMATICS_* variables replace file values.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("CYMATICS_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Infof("Overriding log_level from env: %s", val)
	}

	// CYMATICS_BASE_FREQUENCY, CYMATICS_TOLERANCE
	if val, ok := os.LookupEnv("CYMATICS_BASE_FREQUENCY"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Tuning.BaseFrequency = f
			log.Infof("Overriding tuning.base_frequency from env: %v", f)
		}
	}
	if val, ok := os.LookupEnv("CYMATICS_TOLERANCE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Tuning.Tolerance = f
			log.Infof("Overriding tuning.tolerance from env: %v", f)
		}
	}

	// CYMATICS_WS_{...}
	if val, ok := os.LookupEnv("CYMATICS_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.WebSocketEnabled = bVal
			log.Infof("Overriding transport.websocket_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("CYMATICS_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		log.Infof("Overriding transport.websocket_address from env: %s", val)
	}

	// CYMATICS_UDP_{...}
	if val, ok := os.LookupEnv("CYMATICS_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			log.Infof("Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	if val, ok := os.LookupEnv("CYMATICS_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		log.Infof("Overriding transport.udp_target_address from env: %s", val)
	}
}
