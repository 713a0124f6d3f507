package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-slider/internal/audio"
	"github.com/chaz8081/gostt-slider/internal/trainer"
)

var (
	collectLabel string
	collectWAV   string
	predictWAV   string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect examples for one label from a WAV file",
	Long: `Stream a WAV file through the embedding model and store every frame as
an example of the given label. Examples are appended to what is already
stored.`,
	RunE: runCollect,
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifier on the stored examples",
	RunE:  runTrain,
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Run the stored classifier over a WAV file",
	RunE:  runPredict,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the stored examples and classifier",
	RunE:  runReset,
}

func init() {
	collectCmd.Flags().StringVarP(&collectLabel, "label", "l", "", "class name or label index (required)")
	collectCmd.Flags().StringVarP(&collectWAV, "wav", "w", "", "WAV file to collect from (required)")
	_ = collectCmd.MarkFlagRequired("label")
	_ = collectCmd.MarkFlagRequired("wav")

	predictCmd.Flags().StringVarP(&predictWAV, "wav", "w", "", "WAV file to classify (required)")
	_ = predictCmd.MarkFlagRequired("wav")

	rootCmd.AddCommand(collectCmd, trainCmd, predictCmd, resetCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// waitSession blocks until the trainer's stream runs dry or ctx ends.
func waitSession(ctx context.Context, tr *trainer.Trainer) error {
	select {
	case <-tr.SessionDone():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := requirePersistentStore(cfg); err != nil {
		return err
	}
	label, err := resolveLabel(cfg, collectLabel)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger := newLogger(cfg)
	a, err := newApp(cfg, logger, audio.NewWAVSource(collectWAV, cfg.Audio.SampleRate), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(ctx, false); err != nil {
		return err
	}
	before := a.trainer.Counts()[label]

	if err := a.trainer.StartCollecting(label); err != nil {
		return err
	}
	err = waitSession(ctx, a.trainer)
	a.trainer.StopCollecting()
	if err != nil {
		return err
	}

	if err := a.trainer.Save(ctx); err != nil {
		return err
	}

	counts := a.trainer.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "Collected %d examples for %q\n", counts[label]-before, className(cfg, label))
	for i, n := range counts {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-12s %d\n", className(cfg, i), n)
	}
	return nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := requirePersistentStore(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	logger := newLogger(cfg)
	// Training needs no audio; the source is never started.
	a, err := newApp(cfg, logger, audio.NewWAVSource("", cfg.Audio.SampleRate), appOptions{
		onEpochEnd: func(epoch int, loss float64) {
			fmt.Fprintf(out, "epoch %3d/%d  loss %.4f\n", epoch+1, cfg.Train.Epochs, loss)
		},
	})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(ctx, true); err != nil {
		return err
	}

	res, err := a.trainer.Train(ctx)
	if err != nil {
		return err
	}
	if err := a.trainer.Save(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Trained on %d examples in %s\n", res.Examples, res.Duration.Round(time.Millisecond))
	for i, n := range res.Counts {
		fmt.Fprintf(out, "  %-12s %d\n", className(cfg, i), n)
	}
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := requirePersistentStore(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	out := cmd.OutOrStdout()
	frame := 0
	logger := newLogger(cfg)
	a, err := newApp(cfg, logger, audio.NewWAVSource(predictWAV, cfg.Audio.SampleRate), appOptions{
		onPrediction: func(label int, probs []float64, value float64) {
			fmt.Fprintf(out, "%5d  %-12s p=%.3f  value=%+.2f\n", frame, className(cfg, label), probs[label], value)
			frame++
		},
	})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.load(ctx, true); err != nil {
		return err
	}
	if !a.trainer.Trained() {
		return fmt.Errorf("no trained classifier stored; run 'gostt-slider train' first")
	}

	if _, err := a.trainer.Listen(); err != nil {
		return err
	}
	if err := waitSession(ctx, a.trainer); err != nil {
		return err
	}

	fmt.Fprintf(out, "Final value: %+.2f\n", a.slider.Value())
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := requirePersistentStore(cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(cfg, newLogger(cfg), audio.NewWAVSource("", cfg.Audio.SampleRate), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.trainer.Forget(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted stored data under prefix %q\n", cfg.Storage.Prefix)
	return nil
}
