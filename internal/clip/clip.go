// SPDX-License-Identifier: MIT
// Package clip reads and writes WAV recordings as mono float samples.
package clip

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV      = errors.New("not a valid WAV file")
	ErrUnsupportedBits = errors.New("unsupported WAV bit depth")
)

// WriteBitDepth is the sample size used by Write.
const WriteBitDepth = 16

// Clip is a decoded recording downmixed to mono.
type Clip struct {
	Samples    []float64 // Mono samples in [-1, 1].
	SampleRate int
	Channels   int // Channel count of the source file.
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Load decodes a PCM WAV file, averaging all channels to mono.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	bits := int(dec.BitDepth)
	switch bits {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBits, bits)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := 1 / math.Exp2(float64(bits-1))

	samples := make([]float64, len(buf.Data)/channels)
	for i := range samples {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch])
		}
		samples[i] = sum / float64(channels) * scale
	}

	return &Clip{
		Samples:    samples,
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
	}, nil
}

// Write encodes mono samples as a 16-bit PCM WAV file. Samples outside
// [-1, 1] are clipped.
func Write(path string, samples []float64, sampleRate int) (err error) {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := wav.NewEncoder(f, sampleRate, WriteBitDepth, 1, 1)

	const full = 1<<(WriteBitDepth-1) - 1
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: WriteBitDepth,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(min(max(s, -1), 1) * full))
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return enc.Close()
}
