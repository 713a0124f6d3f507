// Package trainer collects labeled embeddings from a live frame stream,
// trains the classifier head on them, and drives the output slider from
// the classifier's predictions.
//
// A Trainer is the single owner of the training set, the classifier and
// the control state. Collecting, listening and training are mutually
// exclusive: at most one frame stream is active, and nothing else may run
// while a training run is in progress.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/gostt-slider/internal/dataset"
	"github.com/chaz8081/gostt-slider/internal/model"
	"github.com/chaz8081/gostt-slider/internal/output"
	"github.com/chaz8081/gostt-slider/internal/recognizer"
	"github.com/chaz8081/gostt-slider/internal/storage"
)

var (
	// ErrBusy is returned when an operation conflicts with a training run
	// or an active stream.
	ErrBusy = errors.New("trainer: busy")
	// ErrInvalidLabel is returned for labels outside [0, NumClasses).
	ErrInvalidLabel = errors.New("trainer: invalid label")
	// ErrEmptyTrainingSet is returned by Train when nothing was collected.
	ErrEmptyTrainingSet = errors.New("trainer: training set is empty")
)

// Options configures a Trainer.
type Options struct {
	NumClasses    int
	EmbeddingDim  int
	OverlapFactor float64
	// Fit controls each training run. Its OnEpochEnd is called after the
	// trainer has logged the epoch.
	Fit  model.FitOptions
	Seed uint64

	// Store persists the training set and classifier. Optional.
	Store  storage.Store
	Prefix string

	// Slider receives predicted labels while listening. When nil, a slider
	// with no effects is used.
	Slider *output.Slider
	Logger *slog.Logger

	// OnControls is called whenever the control state changes. It must not
	// call back into the Trainer.
	OnControls func(ControlState)
	// OnPrediction is called for every frame while listening, after the
	// slider has been updated. It runs on the stream's goroutine and must
	// not call back into the Trainer.
	OnPrediction func(label int, probs []float64, value float64)
}

// TrainResult summarizes a training run.
type TrainResult struct {
	Examples int
	Counts   []int
	Losses   []float64
	Duration time.Duration
}

type mode int

const (
	modeIdle mode = iota
	modeCollecting
	modeListening
)

// Trainer is the example collector and trainer.
type Trainer struct {
	opts     Options
	src      FrameSource
	log      *slog.Logger
	set      *dataset.Set
	slider   *output.Slider
	controls *controls
	pool     *model.Pool

	mu       sync.Mutex
	clf      *model.Classifier
	trained  bool
	training bool
	mode     mode
	label    int
	session  Stream
}

// New creates a Trainer that streams frames from src.
func New(src FrameSource, opts Options) (*Trainer, error) {
	if src == nil {
		return nil, errors.New("trainer: nil frame source")
	}
	if opts.NumClasses < 2 {
		return nil, fmt.Errorf("trainer: need at least 2 classes, got %d", opts.NumClasses)
	}
	if opts.OverlapFactor < 0 || opts.OverlapFactor >= 1 {
		return nil, fmt.Errorf("trainer: overlap factor %v outside [0, 1)", opts.OverlapFactor)
	}
	clf, err := model.NewClassifier(opts.EmbeddingDim, opts.NumClasses, opts.Seed)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	slider := opts.Slider
	if slider == nil {
		slider = output.NewSlider(0, 0, nil, logger)
	}

	return &Trainer{
		opts:     opts,
		src:      src,
		log:      logger,
		set:      dataset.NewSet(),
		slider:   slider,
		controls: newControls(opts.OnControls),
		pool:     model.NewPool(),
		clf:      clf,
	}, nil
}

// Controls returns the current control state.
func (t *Trainer) Controls() ControlState {
	return t.controls.get()
}

// Slider returns the output slider.
func (t *Trainer) Slider() *output.Slider {
	return t.slider
}

// Examples returns a copy of the training set in collection order.
func (t *Trainer) Examples() []dataset.Example {
	return t.set.Examples()
}

// Counts returns the number of examples per class.
func (t *Trainer) Counts() []int {
	return t.set.Counts(t.opts.NumClasses)
}

// Trained reports whether the classifier has been fitted or loaded.
func (t *Trainer) Trained() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trained
}

// Classifier returns the current classifier.
func (t *Trainer) Classifier() *model.Classifier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clf
}

// streamingLocked reports whether a stream is still delivering frames,
// forgetting streams that have run dry.
func (t *Trainer) streamingLocked() bool {
	if t.session == nil {
		return false
	}
	select {
	case <-t.session.Done():
		t.clearLocked()
		return false
	default:
		return true
	}
}

// clearLocked forgets the current stream, restoring the controls if it was
// a listening stream.
func (t *Trainer) clearLocked() {
	if t.mode == modeListening {
		t.controls.set(idleControls)
	}
	t.session = nil
	t.mode = modeIdle
}

// watch clears sess once it stops delivering frames on its own, so a
// stream whose source ran dry no longer counts as active.
func (t *Trainer) watch(sess Stream) {
	<-sess.Done()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == sess {
		t.clearLocked()
	}
}

// stopLocked cancels the active stream. Callbacks never take t.mu, so
// waiting for them here cannot deadlock.
func (t *Trainer) stopLocked() {
	if t.session == nil {
		return
	}
	t.session.Cancel()
	t.clearLocked()
}

// StartCollecting streams frames and appends each embedding to the
// training set under label until StopCollecting is called. Any active
// stream is stopped first.
func (t *Trainer) StartCollecting(label int) error {
	if label < 0 || label >= t.opts.NumClasses {
		return fmt.Errorf("%w: %d outside [0, %d)", ErrInvalidLabel, label, t.opts.NumClasses)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.training {
		return ErrBusy
	}
	t.stopLocked()

	dim := t.opts.EmbeddingDim
	set := t.set
	sess, err := t.src.Stream(func(f recognizer.Frame) {
		if len(f.Embedding) != dim {
			t.log.Warn("dropping frame with unexpected embedding size", "got", len(f.Embedding), "want", dim)
			return
		}
		set.Append(dataset.Example{Embedding: f.Embedding, Label: label})
	}, recognizer.StreamOptions{OverlapFactor: t.opts.OverlapFactor, IncludeEmbedding: true})
	if err != nil {
		return fmt.Errorf("trainer: start collecting: %w", err)
	}

	t.session = sess
	t.mode = modeCollecting
	t.label = label
	go t.watch(sess)
	t.log.Info("collecting", "label", label)
	return nil
}

// StopCollecting stops an active collecting stream. When it returns no
// more examples will be appended. It is a no-op when not collecting.
func (t *Trainer) StopCollecting() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.streamingLocked() || t.mode != modeCollecting {
		return
	}
	t.stopLocked()
	t.log.Info("stopped collecting", "label", t.label, "examples", t.set.Len())
}

// Train fits the classifier on the whole training set. Controls are
// disabled for the duration of the run and restored however it ends.
func (t *Trainer) Train(ctx context.Context) (*TrainResult, error) {
	t.mu.Lock()
	if t.training || t.streamingLocked() {
		t.mu.Unlock()
		return nil, ErrBusy
	}
	examples := t.set.Examples()
	if len(examples) == 0 {
		t.mu.Unlock()
		return nil, ErrEmptyTrainingSet
	}
	t.training = true
	clf := t.clf
	t.mu.Unlock()

	t.controls.set(disabledControls)
	defer func() {
		t.mu.Lock()
		t.training = false
		t.mu.Unlock()
		t.controls.set(idleControls)
	}()

	counts := make([]int, t.opts.NumClasses)
	labels := make([]int, len(examples))
	rows := make([][]float32, len(examples))
	for i, ex := range examples {
		labels[i] = ex.Label
		rows[i] = ex.Embedding
		if ex.Label >= 0 && ex.Label < len(counts) {
			counts[ex.Label]++
		}
	}
	for label, n := range counts {
		if n == 0 {
			t.log.Warn("class has no examples", "label", label)
		}
	}

	fit := t.opts.Fit
	onEpoch := fit.OnEpochEnd
	fit.OnEpochEnd = func(epoch int, loss float64) {
		t.log.Info("epoch", "epoch", epoch+1, "loss", loss)
		if onEpoch != nil {
			onEpoch(epoch, loss)
		}
	}

	start := time.Now()
	var losses []float64
	err := model.Tidy(t.pool, func(s *model.Scope) error {
		ys, err := model.OneHot(s, labels, t.opts.NumClasses)
		if err != nil {
			return err
		}
		xs, err := model.Concat(s, rows)
		if err != nil {
			return err
		}
		losses, err = clf.Fit(ctx, xs, ys, fit)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("trainer: train: %w", err)
	}

	t.mu.Lock()
	t.trained = true
	t.mu.Unlock()

	res := &TrainResult{
		Examples: len(examples),
		Counts:   counts,
		Losses:   losses,
		Duration: time.Since(start),
	}
	t.log.Info("training complete", "examples", res.Examples, "duration", res.Duration)
	return res, nil
}

// Listen toggles the listening stream and reports whether it is now
// listening. While listening every frame is classified and the predicted
// label is applied to the slider.
func (t *Trainer) Listen() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.training {
		return false, ErrBusy
	}
	if t.streamingLocked() && t.mode == modeListening {
		t.stopLocked()
		t.log.Info("stopped listening", "value", t.slider.Value())
		return false, nil
	}
	t.stopLocked()

	if !t.trained {
		t.log.Warn("listening with an untrained classifier")
	}

	t.controls.set(disabledControls)
	clf, slider, onPrediction := t.clf, t.slider, t.opts.OnPrediction
	sess, err := t.src.Stream(func(f recognizer.Frame) {
		probs, err := clf.Predict(f.Embedding)
		if err != nil {
			t.log.Warn("prediction failed", "err", err)
			return
		}
		label := model.ArgMax(probs)
		value := slider.Apply(label)
		if onPrediction != nil {
			onPrediction(label, probs, value)
		}
	}, recognizer.StreamOptions{OverlapFactor: t.opts.OverlapFactor, IncludeEmbedding: true})
	if err != nil {
		t.controls.set(idleControls)
		return false, fmt.Errorf("trainer: start listening: %w", err)
	}

	t.session = sess
	t.mode = modeListening
	t.controls.set(listenControls)
	go t.watch(sess)
	t.log.Info("listening")
	return true, nil
}

// SessionDone returns a channel that is closed when the current stream
// stops delivering frames. It is already closed when nothing is streaming.
func (t *Trainer) SessionDone() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return t.session.Done()
}

// Reset clears the training set and replaces the classifier with a fresh
// one. Stored data is left alone; see Forget.
func (t *Trainer) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.training || t.streamingLocked() {
		return ErrBusy
	}
	clf, err := model.NewClassifier(t.opts.EmbeddingDim, t.opts.NumClasses, t.opts.Seed)
	if err != nil {
		return fmt.Errorf("trainer: reset: %w", err)
	}
	t.set.Reset()
	t.clf = clf
	t.trained = false
	return nil
}

// Close stops any active stream.
func (t *Trainer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}
