package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/gostt-slider/internal/output"
	"github.com/chaz8081/gostt-slider/internal/trainer"
)

var classes = []string{"up", "down", "noise"}

func TestGauge(t *testing.T) {
	tests := []struct {
		value float64
		pos   int
	}{
		{-1, 0},
		{0, gaugeWidth / 2},
		{1, gaugeWidth - 1},
		{5, gaugeWidth - 1},
		{-3, 0},
	}
	for _, tt := range tests {
		g := []rune(gauge(tt.value))
		// Skip the opening bracket.
		if g[tt.pos+1] != '●' {
			t.Errorf("gauge(%v) = %q, want marker at %d", tt.value, string(g), tt.pos)
		}
		if lipgloss.Width(string(g)) != gaugeWidth+2 {
			t.Errorf("gauge(%v) width = %d, want %d", tt.value, lipgloss.Width(string(g)), gaugeWidth+2)
		}
	}
}

func TestRender(t *testing.T) {
	st := NewStyles(DefaultTheme)
	idle := trainer.ControlState{Enabled: true, ListenEnabled: true, ListenLabel: trainer.ListenLabel}

	tests := []struct {
		name  string
		state State
		want  []string
		not   []string
	}{
		{
			name:  "before any prediction",
			state: State{Label: -1, Controls: idle},
			want:  []string{"+0.00", "ready"},
			not:   []string{"up", "▲"},
		},
		{
			name:  "increment while listening",
			state: State{Value: 0.3, Label: 0, Effect: output.EffectIncrement, Controls: trainer.ControlState{ListenEnabled: true, ListenLabel: trainer.StopLabel}},
			want:  []string{"+0.30", "up", "▲", "listening"},
		},
		{
			name:  "decrement",
			state: State{Value: -0.1, Label: 1, Effect: output.EffectDecrement, Controls: idle},
			want:  []string{"-0.10", "down", "▼"},
		},
		{
			name:  "unnamed label while training",
			state: State{Label: 7, Controls: trainer.ControlState{ListenLabel: trainer.ListenLabel}},
			want:  []string{"#7", "busy"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(st, classes, tt.state)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Render() = %q, missing %q", got, w)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(got, n) {
					t.Errorf("Render() = %q, should not contain %q", got, n)
				}
			}
		})
	}
}

func TestDisplayDrawsOnChange(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, classes)

	if err := d.Update(0, 0.1, output.EffectIncrement); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "\r\x1b[K") {
		t.Errorf("draw should start by clearing the line, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "+0.10") {
		t.Errorf("draw = %q, missing value", buf.String())
	}

	buf.Reset()
	d.SetControls(trainer.ControlState{ListenLabel: trainer.ListenLabel})
	if !strings.Contains(buf.String(), "busy") {
		t.Errorf("draw = %q, missing busy marker", buf.String())
	}
	if !strings.Contains(d.Line(), "up") {
		t.Errorf("Line() = %q, should keep the last prediction", d.Line())
	}
}

func TestDisplayAsSliderSink(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisplay(&buf, classes)
	s := output.NewSlider(0, 0.5, output.Policy{1: output.EffectDecrement}, nil, d)

	s.Apply(1)
	if !strings.Contains(d.Line(), "-0.50") {
		t.Errorf("Line() = %q, want value -0.50", d.Line())
	}
}
