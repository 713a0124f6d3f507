package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chaz8081/gostt-slider/internal/audio"
	"github.com/chaz8081/gostt-slider/internal/config"
	"github.com/chaz8081/gostt-slider/internal/features"
	"github.com/chaz8081/gostt-slider/internal/model"
	"github.com/chaz8081/gostt-slider/internal/output"
	"github.com/chaz8081/gostt-slider/internal/recognizer"
	"github.com/chaz8081/gostt-slider/internal/storage"
	"github.com/chaz8081/gostt-slider/internal/trainer"
)

// app is one wired-up session: store, recognizer, slider and trainer.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   storage.Store
	rec     *recognizer.Recognizer
	slider  *output.Slider
	trainer *trainer.Trainer
}

// appOptions carries the per-command hooks.
type appOptions struct {
	onControls   func(trainer.ControlState)
	onPrediction func(label int, probs []float64, value float64)
	onEpochEnd   func(epoch int, loss float64)
	sinks        []output.Sink
}

func newApp(cfg *config.Config, logger *slog.Logger, src audio.Source, opts appOptions) (*app, error) {
	policy, err := output.PolicyFromClasses(cfg.Classes)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	rec := recognizer.New(src, features.Config{
		WindowSamples: cfg.Features.WindowSamples,
		NumBands:      cfg.Features.NumBands,
		EmbeddingDim:  cfg.Features.EmbeddingDim,
		Seed:          cfg.Features.Seed,
	}, logger)

	logger.Info("loading embedding model...")
	start := time.Now()
	if err := rec.EnsureLoaded(); err != nil {
		store.Close()
		return nil, err
	}
	if err := rec.Warmup(); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: warmup: %v", recognizer.ErrModelLoad, err)
	}
	logger.Info("embedding model ready", "elapsed", time.Since(start).Round(time.Millisecond))

	slider := output.NewSlider(cfg.Output.Initial, cfg.Output.Step, policy, logger, opts.sinks...)

	tr, err := trainer.New(trainer.FromRecognizer(rec), trainer.Options{
		NumClasses:    cfg.NumClasses(),
		EmbeddingDim:  cfg.Features.EmbeddingDim,
		OverlapFactor: cfg.Features.OverlapFactor,
		Fit: model.FitOptions{
			BatchSize:    cfg.Train.BatchSize,
			Epochs:       cfg.Train.Epochs,
			LearningRate: cfg.Train.LearningRate,
			Shuffle:      true,
			OnEpochEnd:   opts.onEpochEnd,
		},
		Seed:         cfg.Train.Seed,
		Store:        store,
		Prefix:       cfg.Storage.Prefix,
		Slider:       slider,
		Logger:       logger,
		OnControls:   opts.onControls,
		OnPrediction: opts.onPrediction,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     logger,
		store:   store,
		rec:     rec,
		slider:  slider,
		trainer: tr,
	}, nil
}

// load restores stored examples. A missing training set is not an error
// unless required is set.
func (a *app) load(ctx context.Context, required bool) error {
	err := a.trainer.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) && !required {
		a.log.Debug("no stored training set")
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no training data stored under prefix %q; run 'gostt-slider collect' first", a.cfg.Storage.Prefix)
	}
	return err
}

func (a *app) close() {
	a.trainer.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store", "err", err)
	}
}

// requirePersistentStore rejects the memory backend for commands that
// hand data to a later invocation.
func requirePersistentStore(cfg *config.Config) error {
	if cfg.Storage.Backend == "memory" || cfg.Storage.Backend == "" {
		return errors.New("storage.backend is \"memory\", which does not persist between commands; set it to \"badger\" or \"redis\"")
	}
	return nil
}

// resolveLabel accepts a class name or a label index.
func resolveLabel(cfg *config.Config, s string) (int, error) {
	for i, cl := range cfg.Classes {
		if cl.Name == s {
			return i, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n >= cfg.NumClasses() {
		return 0, fmt.Errorf("%w: %q is not a class name or an index in [0, %d)", trainer.ErrInvalidLabel, s, cfg.NumClasses())
	}
	return n, nil
}

// className returns the configured name of label.
func className(cfg *config.Config, label int) string {
	if label >= 0 && label < len(cfg.Classes) {
		return cfg.Classes[label].Name
	}
	return strconv.Itoa(label)
}

func classNames(cfg *config.Config) []string {
	names := make([]string, len(cfg.Classes))
	for i, cl := range cfg.Classes {
		names[i] = cl.Name
	}
	return names
}
