// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two arithmetic used to size audio
buffers and analysis segments.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations

Usage:

	// Round a callback buffer up to a valid size
	framesPerBuffer := bitint.NextPowerOfTwo(1000) // Returns 1024

	// Pick a segment whose bins are at most 2 Hz apart at 44.1 kHz
	segment := bitint.SegmentForResolution(44100, 2) // Returns 32768

----------------------------------------------------------------------

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two map to themselves:

	size 8: size-1 = 0111, bits.Len(7) = 3, 1<<3 = 8
	without the subtraction bits.Len(8) = 4 and 8 would become 16
*/
package bitint

import (
	"math"
	"math/bits"
)

// MaxSegmentSize bounds SegmentForResolution.
const MaxSegmentSize = 1 << 24

// NextPowerOfTwo returns the next power of 2 >= size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2.
// Powers of 2 have exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// SegmentForResolution returns the smallest power-of-two segment size whose
// FFT bins are at most resolution Hz apart at sampleRate, capped at
// MaxSegmentSize. Non-positive or non-finite inputs return 1.
func SegmentForResolution(sampleRate, resolution float64) int {
	if !(sampleRate > 0) || !(resolution > 0) || math.IsInf(sampleRate, 0) || math.IsInf(resolution, 0) {
		return 1
	}
	samples := math.Ceil(sampleRate / resolution)
	if samples >= MaxSegmentSize {
		return MaxSegmentSize
	}
	return NextPowerOfTwo(int(samples))
}
