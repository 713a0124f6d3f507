// Command test-hotkey is a manual test for the global hotkey bindings.
// Run it, then press the configured class, train and listen combos to see
// events. Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-hotkey [--config FILE]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chaz8081/gostt-slider/internal/config"
	"github.com/chaz8081/gostt-slider/internal/hotkey"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: built-in defaults)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
	}

	bindings := hotkey.BindingsFromConfig(cfg)
	fmt.Println("Listening for:")
	for _, b := range bindings {
		fmt.Printf("  %-16s %s\n", strings.Join(b.Keys, "+"), describe(cfg, b))
	}
	fmt.Println("Press Ctrl+C to exit.")

	listener := hotkey.NewListener(bindings)

	// Handle Ctrl+C
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		listener.Stop()
	}()

	// Read events
	go func() {
		for ev := range listener.Events() {
			switch ev.Type {
			case hotkey.EventPress:
				fmt.Printf(">>> PRESS   %s\n", describe(cfg, ev.Binding))
			case hotkey.EventRelease:
				fmt.Printf("<<< RELEASE %s\n", describe(cfg, ev.Binding))
			}
		}
		fmt.Println("Event channel closed.")
	}()

	// Blocks until stopped
	listener.Start()
	fmt.Println("Done.")
}

func describe(cfg *config.Config, b hotkey.Binding) string {
	if b.Action == hotkey.ActionCollect && b.Label < len(cfg.Classes) {
		return fmt.Sprintf("collect %q (label %d)", cfg.Classes[b.Label].Name, b.Label)
	}
	return b.Action.String()
}
