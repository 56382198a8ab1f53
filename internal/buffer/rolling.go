// SPDX-License-Identifier: MIT
/*
Package buffer holds the bounded sample store shared between audio capture
and frame rendering.

Thread Safety:
  - A single mutex covers the append/evict sequence, so a snapshot never sees
    a partially appended batch.
  - Snapshot copies out under the same lock; the critical section is a memcpy.
*/
package buffer

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultRetentionSeconds is how much audio the live pipeline keeps.
const DefaultRetentionSeconds = 10.0

var ErrInvalidCapacity = errors.New("buffer capacity must be positive")

// Rolling is a fixed-capacity FIFO of samples backed by a ring. Appending past
// capacity evicts the oldest samples first.
type Rolling struct {
	mu   sync.Mutex
	ring []float64
	head int // index of the oldest sample
	size int // number of valid samples
}

// New creates a Rolling buffer holding at most capacity samples.
func New(capacity int) (*Rolling, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, capacity)
	}
	return &Rolling{ring: make([]float64, capacity)}, nil
}

// NewForDuration sizes the buffer for seconds of audio at sampleRate.
func NewForDuration(sampleRate int, seconds float64) (*Rolling, error) {
	if sampleRate <= 0 || seconds <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d, retention %.3fs", ErrInvalidCapacity, sampleRate, seconds)
	}
	return New(int(float64(sampleRate) * seconds))
}

// Append adds samples in arrival order. If the result would exceed capacity
// the oldest samples are dropped first; a batch longer than the capacity
// keeps only its own tail.
func (b *Rolling) Append(samples []float64) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.ring)
	if len(samples) >= capacity {
		copy(b.ring, samples[len(samples)-capacity:])
		b.head = 0
		b.size = capacity
		return
	}

	if excess := b.size + len(samples) - capacity; excess > 0 {
		b.head = (b.head + excess) % capacity
		b.size -= excess
	}

	tail := (b.head + b.size) % capacity
	n := copy(b.ring[tail:], samples)
	copy(b.ring, samples[n:])
	b.size += len(samples)
}

// Snapshot returns a copy of the most recent n samples, oldest first. Fewer
// are returned when fewer are held.
func (b *Rolling) Snapshot(n int) []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []float64{}
	}

	out := make([]float64, n)
	capacity := len(b.ring)
	start := (b.head + b.size - n) % capacity
	c := copy(out, b.ring[start:min(start+n, capacity)])
	copy(out[c:], b.ring[:n-c])
	return out
}

// Len returns the number of samples currently held.
func (b *Rolling) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Cap returns the maximum number of samples the buffer retains.
func (b *Rolling) Cap() int {
	return len(b.ring)
}

// Reset drops all samples.
func (b *Rolling) Reset() {
	b.mu.Lock()
	b.head, b.size = 0, 0
	b.mu.Unlock()
}
