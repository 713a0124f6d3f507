// Package ui renders the slider and control state as a single live line
// in the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/gostt-slider/internal/output"
	"github.com/chaz8081/gostt-slider/internal/trainer"
)

// gaugeWidth is the number of cells in the slider gauge.
const gaugeWidth = 21

// Theme defines the display colors.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Busy    lipgloss.Color
}

// DefaultTheme is green on the terminal default.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Busy:    lipgloss.Color("#ffb86c"),
}

// Styles holds the styles derived from a Theme.
type Styles struct {
	Value lipgloss.Style
	Gauge lipgloss.Style
	Label lipgloss.Style
	Help  lipgloss.Style
	Busy  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Value: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Gauge: lipgloss.NewStyle().Foreground(t.Primary),
		Label: lipgloss.NewStyle().Bold(true),
		Help:  lipgloss.NewStyle().Foreground(t.Dim),
		Busy:  lipgloss.NewStyle().Bold(true).Foreground(t.Busy),
	}
}

// State is everything shown on the line.
type State struct {
	Value    float64
	Label    int // last predicted label, -1 before the first prediction
	Effect   output.Effect
	Controls trainer.ControlState
}

// Render draws state as one line. classes names the labels.
func Render(st Styles, classes []string, s State) string {
	parts := []string{
		st.Value.Render(fmt.Sprintf("%+.2f", s.Value)),
		st.Gauge.Render(gauge(s.Value)),
	}

	if s.Label >= 0 {
		name := fmt.Sprintf("#%d", s.Label)
		if s.Label < len(classes) {
			name = classes[s.Label]
		}
		parts = append(parts, st.Label.Render(name)+" "+st.Help.Render(effectArrow(s.Effect)))
	}

	switch {
	case !s.Controls.Enabled && !s.Controls.ListenEnabled:
		parts = append(parts, st.Busy.Render("busy"))
	case s.Controls.ListenLabel == trainer.StopLabel:
		parts = append(parts, st.Help.Render("listening"))
	default:
		parts = append(parts, st.Help.Render("ready"))
	}
	return strings.Join(parts, " ")
}

// gauge draws value in [-1, 1] as a marker on a track. Values outside the
// range pin to the ends.
func gauge(value float64) string {
	v := max(-1, min(1, value))
	pos := int((v + 1) / 2 * float64(gaugeWidth-1))
	cells := []rune(strings.Repeat("─", gaugeWidth))
	cells[gaugeWidth/2] = '┼'
	cells[pos] = '●'
	return "[" + string(cells) + "]"
}

func effectArrow(e output.Effect) string {
	switch e {
	case output.EffectIncrement:
		return "▲"
	case output.EffectDecrement:
		return "▼"
	default:
		return "·"
	}
}

// Display keeps the latest State and redraws it in place on every change.
// It is an output.Sink and its SetControls method fits
// trainer.Options.OnControls.
type Display struct {
	w       io.Writer
	styles  Styles
	classes []string

	mu    sync.Mutex
	state State
}

// NewDisplay creates a Display writing to w.
func NewDisplay(w io.Writer, classes []string) *Display {
	return &Display{
		w:       w,
		styles:  NewStyles(DefaultTheme),
		classes: classes,
		state:   State{Label: -1, Controls: trainer.ControlState{Enabled: true, ListenEnabled: true, ListenLabel: trainer.ListenLabel}},
	}
}

// Update records a prediction and redraws.
func (d *Display) Update(label int, value float64, effect output.Effect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Label = label
	d.state.Value = value
	d.state.Effect = effect
	return d.drawLocked()
}

// SetControls records a control state change and redraws.
func (d *Display) SetControls(c trainer.ControlState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Controls = c
	_ = d.drawLocked()
}

// Redraw draws the current state again.
func (d *Display) Redraw() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drawLocked()
}

// Line returns the current line without drawing it.
func (d *Display) Line() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Render(d.styles, d.classes, d.state)
}

func (d *Display) drawLocked() error {
	// Return to column 0 and clear the line before drawing.
	_, err := fmt.Fprint(d.w, "\r\x1b[K"+Render(d.styles, d.classes, d.state))
	return err
}
