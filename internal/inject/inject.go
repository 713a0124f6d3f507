// Package inject forwards slider changes to the active application as key
// taps using robotgo.
package inject

import (
	"fmt"

	"github.com/go-vgo/robotgo"

	"github.com/chaz8081/gostt-slider/internal/output"
)

// KeyTapper taps a key for every increment or decrement. It is an
// output.Sink.
type KeyTapper struct {
	up   string
	down string
	tap  func(key string) error
}

// NewKeyTapper creates a KeyTapper that taps the arrow keys.
func NewKeyTapper() *KeyTapper {
	return &KeyTapper{
		up:   "up",
		down: "down",
		tap:  func(key string) error { return robotgo.KeyTap(key) },
	}
}

// Update taps the key for effect. EffectNone taps nothing.
func (k *KeyTapper) Update(_ int, _ float64, effect output.Effect) error {
	key, ok := k.keyFor(effect)
	if !ok {
		return nil
	}
	if err := k.tap(key); err != nil {
		return fmt.Errorf("inject: key tap %s: %w", key, err)
	}
	return nil
}

func (k *KeyTapper) keyFor(effect output.Effect) (string, bool) {
	switch effect {
	case output.EffectIncrement:
		return k.up, true
	case output.EffectDecrement:
		return k.down, true
	default:
		return "", false
	}
}
