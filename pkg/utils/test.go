// Package utils holds signal fixtures shared by tests and the CLI's tone
// generator.
package utils

import "math"

// FrameRecorder keeps copies of every payload it is handed.
type FrameRecorder struct {
	Payloads []any
}

// Send stores the payload for later inspection instead of transmitting.
func (m *FrameRecorder) Send(data any) error {
	m.Payloads = append(m.Payloads, data)
	return nil
}

// Close implements io.Closer.
func (m *FrameRecorder) Close() error { return nil }

// GenerateSineWave returns size samples of a unit sine at frequency, scaled
// by 0.9 to stay clear of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = math.Sin(2*math.Pi*frequency*t) * 0.9
	}
	return buffer
}

// GenerateChord sums unit sines at the given frequencies with the given
// amplitudes (missing amplitudes default to 1).
func GenerateChord(size int, sampleRate float64, frequencies []float64, amplitudes []float64) []float64 {
	buffer := make([]float64, size)
	for j, f := range frequencies {
		amp := 1.0
		if j < len(amplitudes) {
			amp = amplitudes[j]
		}
		for i := range buffer {
			t := float64(i) / sampleRate
			buffer[i] += amp * math.Sin(2*math.Pi*f*t)
		}
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	return GenerateChord(size, sampleRate, []float64{440, 880, 1320}, []float64{0.5, 0.3, 0.2})
}

// FindPeakBin returns the index of the largest value in magnitudes[startBin:endBin+1].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
