// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"cymatics/internal/color"
	"cymatics/internal/frame"
	"cymatics/internal/pattern"
	"cymatics/internal/tuning"
)

func testFrame(size int) frame.Frame {
	values := make([]float64, size*size)
	for i := range values {
		values[i] = float64(i%5) / 4
	}
	return frame.Frame{
		Index:     7,
		Time:      0.25,
		Frequency: 432,
		Note:      tuning.A,
		Color:     color.DefaultTable().For(tuning.D),
		Pattern:   &pattern.Pattern{Size: size, Values: values},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := testFrame(4)

	if err := EncodePacket(&buf, 42, f); err != nil {
		t.Fatalf("EncodePacket error: %v", err)
	}
	if buf.Len() != HeaderSize+16 {
		t.Fatalf("packet is %d bytes, want %d", buf.Len(), HeaderSize+16)
	}

	p, err := DecodePacket(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodePacket error: %v", err)
	}
	if p.Seq != 42 || p.Elapsed != 250*time.Millisecond || p.Frequency != 432 || p.Note != tuning.A {
		t.Errorf("header = %+v", p)
	}
	if p.Color.Hex() != "#FFA500" {
		t.Errorf("colour = %s, want #FFA500", p.Color.Hex())
	}
	for i, v := range p.Pattern.Values {
		if math.Abs(v-f.Pattern.Values[i]) > 1.0/255 {
			t.Errorf("value %d = %v, want ~%v", i, v, f.Pattern.Values[i])
		}
	}
}

func TestEncodeHeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	f := frame.Frame{Silent: true, Note: tuning.None, Color: color.Black}
	if err := EncodePacket(&buf, 1, f); err != nil {
		t.Fatalf("EncodePacket error: %v", err)
	}

	want := []byte{
		0, 0, 0, 1, // seq
		0, 0, 0, 0, 0, 0, 0, 0, // elapsed
		0, 0, 0, 0, // frequency
		0xff,    // note -1
		0, 0, 0, // rgb
		0, 0, // size
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("packet = %v, want %v", buf.Bytes(), want)
	}
}

func TestOversizedGridRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePacket(&buf, 1, testFrame(MaxGridSize+1)); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("EncodePacket error = %v, want ErrPacketTooLarge", err)
	}

	buf.Reset()
	if err := EncodePacket(&buf, 1, testFrame(MaxGridSize)); err != nil || buf.Len() > MaxPayload {
		t.Errorf("largest grid: err %v, %d bytes", err, buf.Len())
	}

	if _, err := DecodePacket([]byte{1, 2, 3}); !errors.Is(err, ErrShortPacket) {
		t.Errorf("DecodePacket(short) error = %v", err)
	}
}

type recordingSender struct {
	mu      sync.Mutex
	packets [][]byte
}

func (r *recordingSender) Send(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, bytes.Clone(b))
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packets)
}

func TestPublisherSendsLatestFrame(t *testing.T) {
	rec := &recordingSender{}
	p, err := NewPublisher(time.Hour, rec)
	if err != nil {
		t.Fatalf("NewPublisher error: %v", err)
	}
	p.Start()

	for i := range 3 {
		f := testFrame(2)
		f.Index = i
		f.Time = float64(i)
		if err := p.Send(f); err != nil {
			t.Fatalf("Send error: %v", err)
		}
	}
	if err := p.Send("not a frame"); err == nil {
		t.Errorf("Send accepted a non-frame payload")
	}

	// Stop flushes the pending frame; only the last one survives.
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("sent %d packets, want 1", rec.count())
	}
	pkt, err := DecodePacket(rec.packets[0])
	if err != nil {
		t.Fatalf("DecodePacket error: %v", err)
	}
	if pkt.Seq != 1 || pkt.Elapsed != 2*time.Second {
		t.Errorf("packet = seq %d elapsed %v, want seq 1 elapsed 2s", pkt.Seq, pkt.Elapsed)
	}

	if err := p.Close(); err != nil {
		t.Errorf("second stop error: %v", err)
	}
}

func TestSenderDeliversDatagram(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Skipf("no loopback UDP: %v", err)
	}
	defer conn.Close()

	s, err := NewSender(conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewSender error: %v", err)
	}

	var buf bytes.Buffer
	if err := EncodePacket(&buf, 9, testFrame(3)); err != nil {
		t.Fatal(err)
	}
	if err := s.Send(buf.Bytes()); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	in := make([]byte, MaxPayload)
	n, _, err := conn.ReadFromUDP(in)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if p, err := DecodePacket(in[:n]); err != nil || p.Seq != 9 || p.Pattern.Size != 3 {
		t.Errorf("received %+v, err %v", p, err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
	if err := s.Send([]byte{1}); !errors.Is(err, ErrSenderClosed) {
		t.Errorf("Send after Close = %v, want ErrSenderClosed", err)
	}
	if err := s.Send(make([]byte, MaxPayload+1)); !errors.Is(err, ErrPacketTooLarge) {
		t.Errorf("oversized Send = %v, want ErrPacketTooLarge", err)
	}
}
