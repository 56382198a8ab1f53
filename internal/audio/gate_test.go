// SPDX-License-Identifier: MIT
package audio

import (
	"strconv"
	"testing"
)

func TestGateEnableHotPath(t *testing.T) {
	engine := &Engine{}

	if engine.GateEnabled() {
		t.Error("Gate should be disabled initially")
	}

	engine.EnableGate()
	if !engine.GateEnabled() {
		t.Error("Gate should be enabled after EnableGate()")
	}

	engine.DisableGate()
	if engine.GateEnabled() {
		t.Error("Gate should be disabled after DisableGate()")
	}

	engine.EnableGate()
	engine.EnableGate() // Multiple calls should be idempotent
	if !engine.GateEnabled() {
		t.Error("Gate should remain enabled after multiple EnableGate()")
	}

	engine.DisableGate()
	engine.DisableGate()
	if engine.GateEnabled() {
		t.Error("Gate should remain disabled after multiple DisableGate()")
	}
}

func TestGateThresholdBoundaries(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{-0.1, 0.0}, // Below min
		{0.0, 0.0},  // Minimum
		{0.25, 0.25},
		{0.5, 0.5}, // Middle
		{0.999, 0.999},
		{1.0, 1.0}, // Maximum
		{1.5, 1.0}, // Above max
	}

	engine := &Engine{gateEnabled: true}

	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.input, 'f', 3, 64), func(t *testing.T) {
			engine.SetGateThreshold(tt.input)
			if got := engine.GetGateThreshold(); got != tt.expected {
				t.Errorf("Gate threshold: got %.3f, want %.3f", got, tt.expected)
			}
		})
	}
}

func TestApplyGate(t *testing.T) {
	tests := []struct {
		threshold   float64
		wantEnabled bool
		wantLevel   float64
	}{
		{0.05, true, 0.05},
		{2, true, 1},
		{0, false, 0.3},
		{-1, false, 0.3},
	}

	for _, tt := range tests {
		t.Run(strconv.FormatFloat(tt.threshold, 'f', 2, 64), func(t *testing.T) {
			engine := &Engine{gateEnabled: true, gateThreshold: 0.3}
			engine.ApplyGate(tt.threshold)
			if engine.GateEnabled() != tt.wantEnabled || engine.GetGateThreshold() != tt.wantLevel {
				t.Errorf("ApplyGate(%v): enabled %v at %v, want %v at %v", tt.threshold,
					engine.GateEnabled(), engine.GetGateThreshold(), tt.wantEnabled, tt.wantLevel)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		desc string
		in   []float64
		want float64
	}{
		{"Zeros", []float64{0, 0, 0, 0}, 0},
		{"Constant", []float64{0.5, -0.5, 0.5, -0.5}, 0.5},
		{"Single", []float64{-0.25}, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := rms(tt.in); got != tt.want {
				t.Errorf("rms(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func BenchmarkGateThresholdHotPath(b *testing.B) {
	engine := &Engine{}
	values := []float64{0.0, 0.25, 0.5, 0.75, 1.0}

	for _, v := range values {
		b.Run(strconv.FormatFloat(v, 'f', 2, 64), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				engine.SetGateThreshold(v)
				_ = engine.GetGateThreshold()
			}
		})
	}
}
