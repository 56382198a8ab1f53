// SPDX-License-Identifier: MIT
/*
Package audio captures live input into a rolling sample buffer:
- PortAudio float32 input stream
- Mono downmix of every callback batch
- RMS noise gate that stores quiet batches as silence
- WAV recording of the raw input with atomic state management

Thread Safety:
- The stream callback is the only writer of the rolling buffer
- Buffers are pre-allocated to avoid GC in the hot path
- Recording state is an atomic flag
*/
package audio

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
	"gonum.org/v1/gonum/floats"

	"cymatics/internal/buffer"
	"cymatics/internal/config"
	applog "cymatics/internal/log"
)

var log = applog.Component("audio")

type Engine struct {
	// Core configuration and state.
	config config.AudioConfig
	buffer *buffer.Rolling

	// Audio input handling.
	inputBuffer  []float32
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Mono downmix of the current batch.
	mono []float64

	// Noise gate for signal conditioning.
	gateEnabled   bool
	gateThreshold float64 // RMS threshold in [0, 1].

	batches atomic.Uint64
	gated   atomic.Uint64

	// Recording state and buffers.
	isRecording int32 // Atomic flag for thread-safe state
	outputFile  *os.File
	wavEncoder  *wav.Encoder
	sampleBuf   *audio.IntBuffer // Reusable buffer for format conversion
}

// NewEngine resolves the configured input device. PortAudio must be
// initialised.
func NewEngine(cfg config.AudioConfig, buf *buffer.Rolling) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, buf)
	engine.inputDevice = inputDevice
	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	log.Infof("Input device: %s (%d channels at %.0f Hz, latency %s)",
		inputDevice.Name, cfg.InputChannels, cfg.SampleRate, engine.inputLatency)
	return engine, nil
}

// newEngine allocates the processing state without touching PortAudio.
func newEngine(cfg config.AudioConfig, buf *buffer.Rolling) *Engine {
	e := &Engine{
		config:      cfg,
		buffer:      buf,
		inputBuffer: make([]float32, cfg.FramesPerBuffer*cfg.InputChannels),
		mono:        make([]float64, cfg.FramesPerBuffer),
	}
	if cfg.GateThreshold > 0 {
		e.EnableGate()
		e.SetGateThreshold(cfg.GateThreshold)
	}
	return e
}

// Buffer returns the rolling buffer the engine writes to.
func (e *Engine) Buffer() *buffer.Rolling { return e.buffer }

// Stats returns the number of batches processed and how many were gated.
func (e *Engine) Stats() (batches, gated uint64) {
	return e.batches.Load(), e.gated.Load()
}

func (e *Engine) StartInputStream() error {
	if e.inputDevice == nil {
		return fmt.Errorf("no input device")
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return err
	}
	e.inputStream = stream

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return err
	}

	log.Infof("Input stream started")
	return nil
}

func (e *Engine) StopInputStream() error {
	if e.inputStream != nil {
		if err := e.inputStream.Stop(); err != nil {
			return err
		}

		if err := e.inputStream.Close(); err != nil {
			return err
		}

		e.inputStream = nil
		batches, gated := e.Stats()
		log.Infof("Input stream stopped after %d batches (%d gated)", batches, gated)
	}

	return nil
}

// processInputStream is the PortAudio callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	n := copy(e.inputBuffer, in)
	e.processBuffer(e.inputBuffer[:n])

	// Write to WAV file if recording
	if atomic.LoadInt32(&e.isRecording) == 1 && e.wavEncoder != nil {
		e.sampleBuf.Data = e.sampleBuf.Data[:n]
		for i, sample := range e.inputBuffer[:n] {
			e.sampleBuf.Data[i] = int(float64(min(max(sample, -1), 1)) * math.MaxInt32)
		}

		if err := e.wavEncoder.Write(e.sampleBuf); err != nil {
			log.Errorf("Error writing to WAV file: %v", err)
		}
	}
}

// processBuffer downmixes one interleaved batch, applies the gate and
// appends the result to the rolling buffer.
// Performance Critical (Hot Path):
// - No allocations
func (e *Engine) processBuffer(in []float32) {
	channels := max(e.config.InputChannels, 1)
	frames := min(len(in)/channels, len(e.mono))
	mono := e.mono[:frames]

	if channels == 1 {
		for i := range mono {
			mono[i] = float64(in[i])
		}
	} else {
		scale := 1 / float64(channels)
		for i := range mono {
			var sum float64
			for ch := range channels {
				sum += float64(in[i*channels+ch])
			}
			mono[i] = sum * scale
		}
	}

	e.batches.Add(1)
	if e.gateEnabled && frames > 0 && rms(mono) < e.gateThreshold {
		// Quiet batches keep the timeline but carry no signal.
		for i := range mono {
			mono[i] = 0
		}
		e.gated.Add(1)
	}

	e.buffer.Append(mono)
}

func rms(x []float64) float64 {
	return floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
}
