// Package output maps predicted labels to changes of a numeric value.
package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/chaz8081/gostt-slider/internal/config"
)

// Effect is what a predicted label does to the slider value.
type Effect int

const (
	EffectNone Effect = iota
	EffectIncrement
	EffectDecrement
)

// ParseEffect converts a config string to an Effect.
func ParseEffect(s string) (Effect, error) {
	switch s {
	case "none", "":
		return EffectNone, nil
	case "increment":
		return EffectIncrement, nil
	case "decrement":
		return EffectDecrement, nil
	default:
		return EffectNone, fmt.Errorf("output: unknown effect %q", s)
	}
}

func (e Effect) String() string {
	switch e {
	case EffectIncrement:
		return "increment"
	case EffectDecrement:
		return "decrement"
	default:
		return "none"
	}
}

// Policy maps a label index to its effect. Labels not in the map have no
// effect.
type Policy map[int]Effect

// PolicyFromClasses builds a Policy where class i drives label i.
func PolicyFromClasses(classes []config.ClassConfig) (Policy, error) {
	p := make(Policy, len(classes))
	for i, cl := range classes {
		e, err := ParseEffect(cl.Effect)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", cl.Name, err)
		}
		p[i] = e
	}
	return p, nil
}

// Sink receives every slider update.
type Sink interface {
	Update(label int, value float64, effect Effect) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(label int, value float64, effect Effect) error

func (f SinkFunc) Update(label int, value float64, effect Effect) error {
	return f(label, value, effect)
}

// Slider is the numeric value driven by predictions.
type Slider struct {
	step   float64
	policy Policy
	log    *slog.Logger

	mu    sync.Mutex
	value float64
	sinks []Sink
}

// NewSlider returns a Slider starting at initial.
func NewSlider(initial, step float64, policy Policy, logger *slog.Logger, sinks ...Sink) *Slider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slider{
		step:   step,
		policy: policy,
		log:    logger,
		value:  initial,
		sinks:  sinks,
	}
}

// AddSink registers another sink.
func (s *Slider) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Apply adjusts the value for a predicted label and returns the new value.
// Sink errors are logged and do not stop other sinks.
func (s *Slider) Apply(label int) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	effect, ok := s.policy[label]
	if !ok {
		s.log.Warn("no effect configured for label", "label", label)
	}
	switch effect {
	case EffectIncrement:
		s.value += s.step
	case EffectDecrement:
		s.value -= s.step
	}

	for _, sink := range s.sinks {
		if err := sink.Update(label, s.value, effect); err != nil {
			s.log.Warn("output sink failed", "label", label, "err", err)
		}
	}
	return s.value
}

// Value returns the current value.
func (s *Slider) Value() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
