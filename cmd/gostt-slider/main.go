// Command gostt-slider trains a small keyword classifier on your own voice
// and uses it to drive a slider.
//
// Usage:
//
//	gostt-slider [--config FILE] <command>
//
// Commands:
//
//	run       - Interactive collect, train and listen with global hotkeys
//	collect   - Collect examples for one label from a WAV file
//	train     - Train the classifier on the stored examples
//	predict   - Run the stored classifier over a WAV file
//	reset     - Delete stored examples and classifier
//	config    - Write or show the configuration
package main

import (
	"fmt"
	"os"

	"github.com/chaz8081/gostt-slider/cmd/gostt-slider/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
