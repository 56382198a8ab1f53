// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"cymatics/internal/color"
	"cymatics/internal/frame"
	"cymatics/internal/pattern"
	"cymatics/internal/transport"
	"cymatics/internal/tuning"
)

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Elapsed           | int64          | 8            | Session time in ns      |
| Frequency         | float32        | 4            | Dominant Hz (0 = none)  |
| Note              | int8           | 1            | 0..6 = C..B, -1 = none  |
| Colour            | [3]uint8       | 3            | R, G, B                 |
| Grid Size         | uint16         | 2            | Edge length (N)         |
| Values            | []uint8        | N * N        | Row-major, 0..255       |
+-----------------------------------------------------------------------------+
*/

const (
	// HeaderSize is the fixed part of a packet.
	HeaderSize = 4 + 8 + 4 + 1 + 3 + 2

	// MaxPayload is the largest IPv4 UDP payload.
	MaxPayload = 65507

	// MaxGridSize is the largest grid whose packet fits in MaxPayload.
	MaxGridSize = 255

	DefaultInterval = 33 * time.Millisecond
)

var (
	ErrPacketTooLarge = errors.New("packet exceeds UDP payload limit")
	ErrShortPacket    = errors.New("packet shorter than its header")
)

type header struct {
	Seq       uint32
	Elapsed   int64
	Frequency float32
	Note      int8
	RGB       [3]uint8
	Size      uint16
}

// EncodePacket writes f as one packet into buf.
func EncodePacket(buf *bytes.Buffer, seq uint32, f frame.Frame) error {
	size := 0
	if f.Pattern != nil {
		size = f.Pattern.Size
	}
	if size > MaxGridSize {
		return fmt.Errorf("%w: grid %d > %d", ErrPacketTooLarge, size, MaxGridSize)
	}

	r, g, b := f.Color.RGB255()
	h := header{
		Seq:       seq,
		Elapsed:   int64(math.Round(f.Time * float64(time.Second))),
		Frequency: float32(f.Frequency),
		Note:      int8(f.Note),
		RGB:       [3]uint8{r, g, b},
		Size:      uint16(size),
	}

	buf.Grow(HeaderSize + size*size)
	if err := binary.Write(buf, binary.BigEndian, h); err != nil {
		return err
	}
	if size > 0 {
		start := buf.Len()
		buf.Write(make([]byte, size*size))
		transport.Quantize(f.Pattern.Values, buf.Bytes()[start:])
	}
	return nil
}

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Elapsed   time.Duration
	Frequency float32
	Note      tuning.Note
	Color     color.RGB
	Pattern   *pattern.Pattern // Values dequantised to [0, 1].
}

// DecodePacket parses a datagram produced by EncodePacket.
func DecodePacket(data []byte) (Packet, error) {
	var h header
	if len(data) < HeaderSize {
		return Packet{}, ErrShortPacket
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.BigEndian, &h); err != nil {
		return Packet{}, err
	}
	n := int(h.Size)
	body := data[HeaderSize:]
	if len(body) != n*n {
		return Packet{}, fmt.Errorf("%w: %d value bytes for grid %d", ErrShortPacket, len(body), n)
	}

	p := Packet{
		Seq:       h.Seq,
		Elapsed:   time.Duration(h.Elapsed),
		Frequency: h.Frequency,
		Note:      tuning.Note(h.Note),
		Color:     color.RGB{R: float64(h.RGB[0]) / 255, G: float64(h.RGB[1]) / 255, B: float64(h.RGB[2]) / 255},
	}
	if n > 0 {
		values := make([]float64, n*n)
		for i, v := range body {
			values[i] = float64(v) / 255
		}
		p.Pattern = &pattern.Pattern{Size: n, Values: values}
	}
	return p, nil
}

// Publisher sends the most recent frame on a fixed interval. Frames arriving
// faster than the interval replace each other; each frame is sent at most
// once.
type Publisher struct {
	sender   interface{ Send([]byte) error }
	interval time.Duration

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker, doneChan and pending.

	pending     *frame.Frame
	sequenceNum uint32
	packet      bytes.Buffer
}

// NewPublisher creates a Publisher over sender. An interval <= 0 uses
// DefaultInterval.
func NewPublisher(interval time.Duration, sender interface{ Send([]byte) error }) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("publisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		log.Warnf("Invalid interval provided, defaulting to %s", interval)
	}
	log.Infof("Publisher initialising (interval %s)", interval)
	return &Publisher{sender: sender, interval: interval}, nil
}

// Send queues data if it is a frame. It implements transport.Transport.
func (p *Publisher) Send(data any) error {
	f, ok := data.(frame.Frame)
	if !ok {
		return fmt.Errorf("publisher: unsupported payload %T", data)
	}
	if f.Pattern != nil && f.Pattern.Size > MaxGridSize {
		return fmt.Errorf("%w: grid %d > %d", ErrPacketTooLarge, f.Pattern.Size, MaxGridSize)
	}
	p.mu.Lock()
	p.pending = &f
	p.mu.Unlock()
	return nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		log.Warnf("Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Local copies avoid racing on p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.flush()
			case <-doneChan:
				return
			}
		}
	}()
}

// flush sends the pending frame, if any.
func (p *Publisher) flush() {
	p.mu.Lock()
	f := p.pending
	p.pending = nil
	p.mu.Unlock()
	if f == nil {
		return
	}

	p.sequenceNum++
	p.packet.Reset()
	if err := EncodePacket(&p.packet, p.sequenceNum, *f); err != nil {
		log.Errorf("Error packing frame %d: %v", f.Index, err)
		return
	}
	if err := p.sender.Send(p.packet.Bytes()); err == nil {
		log.Debugf("Sent packet %d (%d bytes)", p.sequenceNum, p.packet.Len())
	}
}

// Stop signals the goroutine to exit, waits for it and sends any frame
// still pending. Repeated calls are no-ops.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.flush()
	log.Infof("Publisher stopped after %d packets", p.sequenceNum)
	return nil
}

// Close implements io.Closer.
func (p *Publisher) Close() error {
	return p.Stop()
}

var _ transport.Transport = (*Publisher)(nil)
