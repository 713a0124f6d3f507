package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-slider/internal/audio"
	"github.com/chaz8081/gostt-slider/internal/config"
	"github.com/chaz8081/gostt-slider/internal/hotkey"
	"github.com/chaz8081/gostt-slider/internal/inject"
	"github.com/chaz8081/gostt-slider/internal/output"
	"github.com/chaz8081/gostt-slider/internal/trainer"
	"github.com/chaz8081/gostt-slider/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Interactive session with the microphone and global hotkeys",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	logger.Info("config loaded", "source", source)

	printBanner(cfg)

	recorder, err := audio.NewRecorder(cfg.Audio.SampleRate, cfg.Audio.Channels, logger)
	if err != nil {
		return fmt.Errorf("initializing audio recorder: %w\n\nEnsure microphone access is granted to this terminal", err)
	}
	defer recorder.Close()

	display := ui.NewDisplay(os.Stdout, classNames(cfg))
	sinks := []output.Sink{display}
	if cfg.Output.KeyTap {
		sinks = append(sinks, inject.NewKeyTapper())
		logger.Info("key taps enabled")
	}

	a, err := newApp(cfg, logger, recorder, appOptions{
		onControls: display.SetControls,
		sinks:      sinks,
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if cfg.Storage.AutoLoad {
		if err := a.load(ctx, false); err != nil {
			return err
		}
		logger.Info("resumed", "examples", len(a.trainer.Examples()), "trained", a.trainer.Trained())
	}

	listener := hotkey.NewListener(hotkey.BindingsFromConfig(cfg))
	go listener.Start()

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Training runs off the event loop; results come back here.
	trainDone := make(chan error, 1)

	_ = display.Redraw()
	events := listener.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				logger.Info("hotkey listener stopped")
				return nil
			}
			handleEvent(ctx, a, ev, trainDone)

		case err := <-trainDone:
			switch {
			case errors.Is(err, trainer.ErrEmptyTrainingSet):
				logger.Warn("nothing to train on yet; hold a class hotkey while speaking first")
			case err != nil:
				logger.Error("training failed", "err", err)
			default:
				saveQuietly(ctx, a)
			}

		case sig := <-sigCh:
			fmt.Println()
			logger.Info("shutting down", "signal", sig.String())
			a.close()
			recorder.Close()
			// Exit directly to avoid gohook's C cleanup crash.
			// The OS reclaims the event hook on process exit.
			os.Exit(0)
		}
	}
}

func handleEvent(ctx context.Context, a *app, ev hotkey.Event, trainDone chan<- error) {
	tr := a.trainer
	switch ev.Binding.Action {
	case hotkey.ActionCollect:
		name := className(a.cfg, ev.Binding.Label)
		if ev.Type == hotkey.EventRelease {
			tr.StopCollecting()
			a.log.Info("collected", "class", name, "count", tr.Counts()[ev.Binding.Label])
			saveQuietly(ctx, a)
			return
		}
		if err := tr.StartCollecting(ev.Binding.Label); err != nil {
			a.log.Warn("cannot collect", "class", name, "err", err)
		}

	case hotkey.ActionTrain:
		if !tr.Controls().Enabled {
			a.log.Warn("train ignored while busy")
			return
		}
		go func() {
			_, err := tr.Train(ctx)
			trainDone <- err
		}()

	case hotkey.ActionListen:
		if _, err := tr.Listen(); err != nil {
			a.log.Warn("cannot toggle listening", "err", err)
		}
	}
}

// saveQuietly persists the session when the store outlives the process.
func saveQuietly(ctx context.Context, a *app) {
	if a.cfg.Storage.Backend == "memory" {
		return
	}
	if err := a.trainer.Save(ctx); err != nil {
		a.log.Warn("saving training set", "err", err)
	}
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== gostt-slider ===")
	for i, cl := range cfg.Classes {
		fmt.Printf("  Class %d: %-8s %-12s (%s)\n", i, cl.Name, strings.Join(cl.Keys, "+"), cl.Effect)
	}
	fmt.Printf("  Train:   %s\n", strings.Join(cfg.Hotkey.Train, "+"))
	fmt.Printf("  Listen:  %s\n", strings.Join(cfg.Hotkey.Listen, "+"))
	fmt.Printf("  Audio:   %dHz, %dch\n", cfg.Audio.SampleRate, cfg.Audio.Channels)
	fmt.Printf("  Storage: %s\n", cfg.Storage.Backend)
	fmt.Printf("  Log:     %s\n", cfg.LogLevel)
	fmt.Println("====================")
}
