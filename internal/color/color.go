// SPDX-License-Identifier: MIT
/*
Package color assigns a fixed colour to each note and builds gradients
between note colours.

All functions are pure: gradients are finite, deterministic and can be
regenerated from their inputs at any time.
*/
package color

import (
	"errors"
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"

	"cymatics/internal/tuning"
)

// RGB is a colour with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// Black is the colour used when no note matched.
var Black = RGB{}

// White is the top of every note's shading ramp.
var White = RGB{1, 1, 1}

func fromColorful(c colorful.Color) RGB { return RGB{c.R, c.G, c.B} }

func (c RGB) colorful() colorful.Color { return colorful.Color{R: c.R, G: c.G, B: c.B} }

// Hex formats c as #RRGGBB (upper case).
func (c RGB) Hex() string {
	r, g, b := c.colorful().Clamped().RGB255()
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// RGB255 returns the 8-bit components of c, clamped.
func (c RGB) RGB255() (uint8, uint8, uint8) {
	return c.colorful().Clamped().RGB255()
}

// Lerp blends linearly from c toward to by alpha in component space.
func (c RGB) Lerp(to RGB, alpha float64) RGB {
	switch {
	case alpha <= 0:
		return c
	case alpha >= 1:
		return to
	}
	return fromColorful(c.colorful().BlendRgb(to.colorful(), alpha))
}

var (
	ErrUnknownNote  = errors.New("note has no colour")
	ErrInvalidTable = errors.New("colour table must map each note to a distinct colour")
	ErrInvalidSteps = errors.New("gradient steps must be at least 1")
)

// DefaultHex is the note-to-colour assignment.
var DefaultHex = map[tuning.Note]string{
	tuning.C: "#FF00FF", // magenta
	tuning.D: "#FFA500", // orange
	tuning.E: "#FFFF00", // yellow
	tuning.F: "#0000FF", // blue
	tuning.G: "#800080", // purple
	tuning.A: "#FFFFFF", // white
	tuning.B: "#FF0000", // red
}

// Table is an immutable bijection from the seven notes to colours.
type Table struct {
	colors [tuning.NoteCount]RGB
}

// DefaultTable returns the table built from DefaultHex.
func DefaultTable() *Table {
	t, err := NewTable(DefaultHex)
	if err != nil {
		panic(err) // DefaultHex is a package constant
	}
	return t
}

// NewTable parses hex colours for every canonical note and checks that no
// two notes share a colour.
func NewTable(hex map[tuning.Note]string) (*Table, error) {
	t := &Table{}
	seen := make(map[RGB]tuning.Note, tuning.NoteCount)
	for _, n := range tuning.Canonical {
		h, ok := hex[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s missing", ErrInvalidTable, n)
		}
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTable, n, err)
		}
		rgb := fromColorful(c)
		if prev, dup := seen[rgb]; dup {
			return nil, fmt.Errorf("%w: %s and %s are both %s", ErrInvalidTable, prev, n, h)
		}
		seen[rgb] = n
		t.colors[n] = rgb
	}
	return t, nil
}

// For returns the colour of note, or Black for tuning.None.
func (t *Table) For(note tuning.Note) RGB {
	if !note.Valid() {
		return Black
	}
	return t.colors[note]
}

// Gradient walks cycle starting at start and, for each consecutive pair
// (wrapping back to start), emits steps colours interpolated with alpha from
// 0 to 1 inclusive. A nil cycle means canonical order. The result has
// len(cycle)*steps entries.
func (t *Table) Gradient(start tuning.Note, steps int, cycle []tuning.Note) ([]RGB, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSteps, steps)
	}
	if cycle == nil {
		cycle = tuning.Canonical[:]
	}

	offset := -1
	for i, n := range cycle {
		if !n.Valid() {
			return nil, fmt.Errorf("%w: %s in cycle", ErrUnknownNote, n)
		}
		if n == start && offset < 0 {
			offset = i
		}
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: start %s not in cycle", ErrUnknownNote, start)
	}

	out := make([]RGB, 0, len(cycle)*steps)
	for i := range cycle {
		from := t.For(cycle[(offset+i)%len(cycle)])
		to := t.For(cycle[(offset+i+1)%len(cycle)])
		for j := range steps {
			out = append(out, from.Lerp(to, alpha(j, steps)))
		}
	}
	return out, nil
}

// Fan blends the colour of base toward every canonical note in turn, steps
// colours per note.
func (t *Table) Fan(base tuning.Note, steps int) ([]RGB, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSteps, steps)
	}
	if !base.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNote, base)
	}

	from := t.For(base)
	out := make([]RGB, 0, tuning.NoteCount*steps)
	for _, n := range tuning.Canonical {
		to := t.For(n)
		for j := range steps {
			out = append(out, from.Lerp(to, alpha(j, steps)))
		}
	}
	return out, nil
}

// StepsForDuration converts an animation length to steps per gradient
// segment at ten colours per second spread over seven segments.
func StepsForDuration(seconds float64) int {
	return max(1, int(seconds*10/tuning.NoteCount))
}

// Shade maps v in [0, 1] onto the ramp black -> note colour -> white. A
// missing note shades from black to white.
func (t *Table) Shade(note tuning.Note, v float64) RGB {
	mid := RGB{0.5, 0.5, 0.5}
	if note.Valid() {
		mid = t.For(note)
	}
	switch {
	case v <= 0:
		return Black
	case v >= 1:
		return White
	case v < 0.5:
		return Black.Lerp(mid, v*2)
	default:
		return mid.Lerp(White, v*2-1)
	}
}

// alpha spaces steps values evenly over [0, 1]; a single step sits at 0.
func alpha(j, steps int) float64 {
	if steps == 1 {
		return 0
	}
	return float64(j) / float64(steps-1)
}
