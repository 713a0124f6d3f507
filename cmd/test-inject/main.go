// Command test-inject is a manual test for slider key taps.
// It waits 3 seconds, then taps up twice and down once.
// Focus a window that reacts to arrow keys before the countdown finishes.
//
// Usage:
//
//	go run ./cmd/test-inject [--step 0.1]
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/chaz8081/gostt-slider/internal/inject"
	"github.com/chaz8081/gostt-slider/internal/output"
)

func main() {
	step := flag.Float64("step", 0.1, "slider step per tap")
	flag.Parse()

	fmt.Println("Will tap up, up, down in 3 seconds...")
	fmt.Println("Focus a window that reacts to arrow keys now!")

	for i := 3; i > 0; i-- {
		fmt.Printf("%d...\n", i)
		time.Sleep(time.Second)
	}

	policy := output.Policy{0: output.EffectIncrement, 1: output.EffectDecrement, 2: output.EffectNone}
	tapper := inject.NewKeyTapper()
	var tapErr error
	taps := output.SinkFunc(func(label int, value float64, effect output.Effect) error {
		if err := tapper.Update(label, value, effect); err != nil {
			tapErr = err
			return err
		}
		return nil
	})
	report := output.SinkFunc(func(label int, value float64, effect output.Effect) error {
		fmt.Printf("label %d -> %s, value %+.2f\n", label, effect, value)
		return nil
	})
	slider := output.NewSlider(0, *step, policy, nil, taps, report)

	for _, label := range []int{0, 0, 2, 1} {
		slider.Apply(label)
		time.Sleep(200 * time.Millisecond)
	}
	if tapErr != nil {
		fmt.Printf("Error: %v\n", tapErr)
		return
	}

	fmt.Println("\nDone!")
}
