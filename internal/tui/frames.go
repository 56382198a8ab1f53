// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cymatics/internal/frame"
)

// shades maps pattern intensity to block characters, darkest first.
var shades = []rune(" ░▒▓█")

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D7D7D"))
	heldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000")).Bold(true)
)

type frameMsg frame.Frame

type framesDoneMsg struct{}

// FrameViewModel shows the latest frame of a live session: the label in
// the note's colour above a character rendering of the pattern.
type FrameViewModel struct {
	frames  <-chan frame.Frame
	current frame.Frame
	seen    int
	width   int
	height  int
	done    bool
}

// NewFrameViewModel reads frames until the channel is closed.
func NewFrameViewModel(frames <-chan frame.Frame) FrameViewModel {
	return FrameViewModel{frames: frames, width: 64, height: 32}
}

func (m FrameViewModel) Init() tea.Cmd {
	return m.waitForFrame()
}

func (m FrameViewModel) waitForFrame() tea.Cmd {
	frames := m.frames
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return framesDoneMsg{}
		}
		return frameMsg(f)
	}
}

func (m FrameViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 1)
		m.height = max(msg.Height-4, 1)

	case frameMsg:
		m.current = frame.Frame(msg)
		m.seen++
		return m, m.waitForFrame()

	case framesDoneMsg:
		m.done = true

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m FrameViewModel) View() string {
	if m.seen == 0 {
		if m.done {
			return "No frames received.\n\nq: Quit"
		}
		return "Waiting for audio..."
	}

	f := m.current
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color(f.Color.Hex())).
		Bold(true).
		Render(f.Label())

	status := fmt.Sprintf("frame %d  t=%.2fs", f.Index, f.Time)
	if f.Held {
		status += "  " + heldStyle.Render("held")
	}
	if m.done {
		status += "  session ended"
	}

	return fmt.Sprintf("%s\n\n%s\n%s  %s",
		label,
		Render(f, m.width, m.height),
		statusStyle.Render(status),
		infoStyle.Render("q: Quit"))
}

// Render draws the frame's pattern into at most width x height cells. A
// terminal cell is about twice as tall as wide, so each row covers two
// columns' worth of grid.
func Render(f frame.Frame, width, height int) string {
	p := f.Pattern
	if p == nil || p.Size == 0 || width < 1 || height < 1 {
		return ""
	}

	cols := min(width, p.Size)
	rows := min(height, max(cols/2, 1))

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(f.Color.Hex()))
	var sb strings.Builder
	line := make([]rune, cols)
	for r := range rows {
		y := r * p.Size / rows
		for c := range cols {
			x := c * p.Size / cols
			v := min(max(p.At(y, x), 0), 1)
			line[c] = shades[int(v*float64(len(shades)-1)+0.5)]
		}
		sb.WriteString(style.Render(string(line)))
		if r < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
