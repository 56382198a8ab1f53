// SPDX-License-Identifier: MIT
package transport

import (
	"errors"

	"cymatics/internal/frame"
)

// Transport defines a generic interface for sending frames or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message is the JSON form of a frame.
type Message struct {
	Index     int     `json:"index"`
	Time      float64 `json:"time"`
	Frequency float64 `json:"frequency"`
	Silent    bool    `json:"silent"`
	Held      bool    `json:"held"`
	Note      string  `json:"note"`
	Color     string  `json:"color"`
	Label     string  `json:"label"`
	Size      int     `json:"size"`
	Values    []byte  `json:"values"` // Row-major pattern quantised to 0..255, base64 in JSON.
}

// NewMessage converts f for the wire.
func NewMessage(f frame.Frame) Message {
	m := Message{
		Index:     f.Index,
		Time:      f.Time,
		Frequency: f.Frequency,
		Silent:    f.Silent,
		Held:      f.Held,
		Note:      f.Note.String(),
		Color:     f.Color.Hex(),
		Label:     f.Label(),
	}
	if f.Pattern != nil {
		m.Size = f.Pattern.Size
		m.Values = Quantize(f.Pattern.Values, make([]byte, len(f.Pattern.Values)))
	}
	return m
}

// Quantize maps values in [0, 1] onto dst as 0..255 and returns dst.
func Quantize(values []float64, dst []byte) []byte {
	for i, v := range values {
		dst[i] = byte(min(max(v, 0), 1)*255 + 0.5)
	}
	return dst
}

type sink struct{ t Transport }

func (s sink) Emit(f frame.Frame) error { return s.t.Send(f) }

// Sink adapts t to receive driver frames.
func Sink(t Transport) frame.Sink { return sink{t} }

type fanout []frame.Sink

func (fo fanout) Emit(f frame.Frame) error {
	var errs []error
	for _, s := range fo {
		if err := s.Emit(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Fanout emits every frame to all sinks, joining their errors.
func Fanout(sinks ...frame.Sink) frame.Sink { return fanout(sinks) }
