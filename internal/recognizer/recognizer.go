// Package recognizer streams embeddings from an audio source.
//
// A Recognizer slides a fixed window over incoming audio, hopping by a
// fraction of the window set by the overlap factor, and hands each
// window's embedding to a subscriber callback. Only one subscription is
// active at a time.
package recognizer

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/chaz8081/gostt-slider/internal/audio"
	"github.com/chaz8081/gostt-slider/internal/features"
)

// ErrModelLoad is returned when the embedding model cannot be built or has
// not been loaded yet.
var ErrModelLoad = errors.New("recognizer: model not loaded")

// Frame is one analysis window delivered to a subscriber.
type Frame struct {
	// Index counts frames from the start of the subscription.
	Index int
	// Embedding is nil unless StreamOptions.IncludeEmbedding was set.
	Embedding []float32
}

// StreamOptions configures a subscription.
type StreamOptions struct {
	// OverlapFactor is the fraction of each window shared with the next,
	// in [0, 1).
	OverlapFactor float64
	// IncludeEmbedding requests the embedding for each frame.
	IncludeEmbedding bool
}

// Recognizer owns an audio source and the embedding extractor.
type Recognizer struct {
	src audio.Source
	cfg features.Config
	log *slog.Logger

	mu     sync.Mutex
	ext    *features.Extractor
	active *Subscription
}

// New creates a Recognizer over src. EnsureLoaded must be called before
// streaming.
func New(src audio.Source, cfg features.Config, logger *slog.Logger) *Recognizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{src: src, cfg: cfg, log: logger}
}

// EnsureLoaded builds the embedding extractor if it has not been built yet.
func (r *Recognizer) EnsureLoaded() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ext != nil {
		return nil
	}
	ext, err := features.New(r.cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	r.ext = ext
	return nil
}

// Warmup runs one extraction on silence so the first live frame is not
// slowed by first-use costs. The result is discarded.
func (r *Recognizer) Warmup() error {
	ext, err := r.extractor()
	if err != nil {
		return err
	}
	_, err = ext.Extract(make([]float32, ext.WindowSamples()))
	return err
}

// EmbeddingDim returns the length of the embeddings this recognizer emits.
func (r *Recognizer) EmbeddingDim() int {
	return r.cfg.EmbeddingDim
}

func (r *Recognizer) extractor() (*features.Extractor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ext == nil {
		return nil, ErrModelLoad
	}
	return r.ext, nil
}

// Stream starts a subscription that calls onFrame for every window, one
// call at a time, on a dedicated goroutine. Any active subscription is
// cancelled first, and its cancellation completes before the new source
// starts.
func (r *Recognizer) Stream(onFrame func(Frame), opts StreamOptions) (*Subscription, error) {
	if opts.OverlapFactor < 0 || opts.OverlapFactor >= 1 {
		return nil, fmt.Errorf("recognizer: overlap factor %v outside [0, 1)", opts.OverlapFactor)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ext == nil {
		return nil, ErrModelLoad
	}
	if r.active != nil {
		r.active.Cancel()
		r.active = nil
	}

	ch, err := r.src.Start()
	if err != nil {
		return nil, fmt.Errorf("recognizer: starting audio: %w", err)
	}

	window := r.ext.WindowSamples()
	hop := max(1, int(math.Round(float64(window)*(1-opts.OverlapFactor))))
	sub := newSubscription(r.src.Stop, r.log)
	r.active = sub

	r.log.Debug("stream started", "subscription", sub.ID(), "window", window, "hop", hop)
	go sub.run(ch, newFramer(window, hop), r.ext, opts, onFrame)
	return sub, nil
}

// IsStreaming reports whether a subscription is delivering frames.
func (r *Recognizer) IsStreaming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return false
	}
	select {
	case <-r.active.Done():
		return false
	default:
		return true
	}
}

// StopStreaming cancels the active subscription, if any.
func (r *Recognizer) StopStreaming() {
	r.mu.Lock()
	sub := r.active
	r.active = nil
	r.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}
