// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cymatics/internal/clip"
	"cymatics/pkg/utils"
)

func TestRecordingStartStopHotPath(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_recording.wav")
	engine := newProcessingEngine(t, 2)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if !engine.IsRecording() {
		t.Error("Engine should be in recording state")
	}

	if engine.outputFile == nil || engine.wavEncoder == nil || engine.sampleBuf == nil {
		t.Fatal("Recording state should be initialized")
	}

	if engine.sampleBuf.Format.NumChannels != engine.config.InputChannels {
		t.Errorf("Buffer channels mismatch: got %d, want %d",
			engine.sampleBuf.Format.NumChannels, engine.config.InputChannels)
	}

	if engine.sampleBuf.Format.SampleRate != int(engine.config.SampleRate) {
		t.Errorf("Buffer sample rate mismatch: got %d, want %d",
			engine.sampleBuf.Format.SampleRate, int(engine.config.SampleRate))
	}

	if len(engine.sampleBuf.Data) != engine.config.FramesPerBuffer*engine.config.InputChannels {
		t.Errorf("Buffer size mismatch: got %d, want %d",
			len(engine.sampleBuf.Data), engine.config.FramesPerBuffer*engine.config.InputChannels)
	}

	outputFile := engine.outputFile

	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}

	if engine.IsRecording() {
		t.Error("Engine should not be in recording state after stopping")
	}

	if engine.outputFile != nil || engine.wavEncoder != nil {
		t.Error("Recording state should be cleared after stopping")
	}

	if err := outputFile.Close(); err == nil {
		t.Error("File should already be closed")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		t.Error("Recording file was not created")
	}
}

func TestRecordingRoundTrip(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "capture.wav")
	engine := newProcessingEngine(t, 2)
	wave := utils.GenerateSineWave(testFrameSize, testSampleRate, 440)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}
	for range 3 {
		engine.processInputStream(interleave(wave, 0.5, 0.5))
	}
	if err := engine.StopRecording(); err != nil {
		t.Fatalf("Failed to stop recording: %v", err)
	}

	c, err := clip.Load(filename)
	if err != nil {
		t.Fatalf("clip.Load error: %v", err)
	}
	if c.Channels != 2 || c.SampleRate != testSampleRate {
		t.Errorf("clip format = %d ch at %v Hz", c.Channels, c.SampleRate)
	}
	if len(c.Samples) != 3*testFrameSize {
		t.Fatalf("clip holds %d samples, want %d", len(c.Samples), 3*testFrameSize)
	}
	for i := range testFrameSize {
		if math.Abs(c.Samples[i]-0.5*wave[i]) > 1e-4 {
			t.Fatalf("sample %d = %v, want %v", i, c.Samples[i], 0.5*wave[i])
		}
	}

	// The rolling buffer received the same batches.
	if n := engine.Buffer().Len(); n != 3*testFrameSize {
		t.Errorf("buffer holds %d samples, want %d", n, 3*testFrameSize)
	}
}

func TestRecordingErrorCases(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		desc          string
		filename      string
		isRecording   int32
		expectError   bool
		errorContains string
	}{
		{"Already recording", filepath.Join(dir, "valid.wav"), 1, true, "already recording"},
		{"Invalid path", filepath.Join(blocker, "file.wav"), 0, true, ""},
		{"Valid path", filepath.Join(dir, "test.wav"), 0, false, ""},
		{"Stop when not recording", "", 0, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			var err error
			engine := newProcessingEngine(t, 1)

			atomic.StoreInt32(&engine.isRecording, tt.isRecording)

			if tt.filename == "" {
				err = engine.StopRecording()
			} else {
				err = engine.StartRecording(tt.filename)
				if err == nil {
					_ = engine.StopRecording()
				}
			}

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}

			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			if tt.errorContains != "" && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errorContains)
			}
		})
	}
}

func TestCloseEngineWithRecording(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "test_close_engine.wav")
	engine := newProcessingEngine(t, 1)

	if err := engine.StartRecording(filename); err != nil {
		t.Fatalf("Failed to start recording: %v", err)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Failed to close engine: %v", err)
	}

	if engine.IsRecording() || engine.outputFile != nil || engine.wavEncoder != nil {
		t.Error("Close() should stop the recording")
	}
}

func TestRecordingPath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	want := filepath.Join("out", "cymatics_20240309_140507.wav")
	if got := RecordingPath("out", now); got != want {
		t.Errorf("RecordingPath = %q, want %q", got, want)
	}
}

func BenchmarkRecordingProcessHotPath(b *testing.B) {
	engine := newProcessingEngine(b, 2)
	in := interleave(utils.GenerateSineWave(testFrameSize, testSampleRate, 440), 1, 1)

	filename := filepath.Join(b.TempDir(), "bench_process.wav")
	if err := engine.StartRecording(filename); err != nil {
		b.Fatal(err)
	}
	defer engine.StopRecording()

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		engine.processInputStream(in)
	}
}
