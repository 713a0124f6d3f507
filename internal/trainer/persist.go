package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chaz8081/gostt-slider/internal/dataset"
	"github.com/chaz8081/gostt-slider/internal/model"
	"github.com/chaz8081/gostt-slider/internal/storage"
)

// Storage key names under Options.Prefix.
const (
	keyActivations = "activations"
	keyLabels      = "labels"
	keyClassifier  = "classifier"
)

var errNoStore = errors.New("trainer: no store configured")

func (t *Trainer) key(name string) string {
	return storage.Key(t.opts.Prefix, name)
}

// Save writes the training set, and the classifier once trained, to the
// store.
func (t *Trainer) Save(ctx context.Context) error {
	if t.opts.Store == nil {
		return errNoStore
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.training {
		return ErrBusy
	}

	acts, labels, err := dataset.Encode(t.set.Examples())
	if err != nil {
		return fmt.Errorf("trainer: save: %w", err)
	}
	if err := t.opts.Store.Set(ctx, t.key(keyActivations), acts); err != nil {
		return fmt.Errorf("trainer: save activations: %w", err)
	}
	if err := t.opts.Store.Set(ctx, t.key(keyLabels), labels); err != nil {
		return fmt.Errorf("trainer: save labels: %w", err)
	}

	if t.trained {
		data, err := json.Marshal(t.clf)
		if err != nil {
			return fmt.Errorf("trainer: save classifier: %w", err)
		}
		if err := t.opts.Store.Set(ctx, t.key(keyClassifier), string(data)); err != nil {
			return fmt.Errorf("trainer: save classifier: %w", err)
		}
	}
	t.log.Info("saved training set", "examples", t.set.Len(), "classifier", t.trained)
	return nil
}

// Load replaces the training set with the stored one and, if present, the
// classifier. It returns storage.ErrNotFound when no training set is
// stored and dataset.ErrStorageCorrupt when the stored data cannot be
// used with the current configuration.
func (t *Trainer) Load(ctx context.Context) error {
	if t.opts.Store == nil {
		return errNoStore
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.training || t.streamingLocked() {
		return ErrBusy
	}

	acts, err := t.opts.Store.Get(ctx, t.key(keyActivations))
	if err != nil {
		return fmt.Errorf("trainer: load activations: %w", err)
	}
	labels, err := t.opts.Store.Get(ctx, t.key(keyLabels))
	if err != nil {
		return fmt.Errorf("trainer: load labels: %w", err)
	}
	examples, err := dataset.Decode(acts, labels)
	if err != nil {
		return fmt.Errorf("trainer: load: %w", err)
	}
	for i, ex := range examples {
		if ex.Label < 0 || ex.Label >= t.opts.NumClasses {
			return fmt.Errorf("%w: example %d has label %d, want [0, %d)",
				dataset.ErrStorageCorrupt, i, ex.Label, t.opts.NumClasses)
		}
		if len(ex.Embedding) != t.opts.EmbeddingDim {
			return fmt.Errorf("%w: example %d has %d values, want %d",
				dataset.ErrStorageCorrupt, i, len(ex.Embedding), t.opts.EmbeddingDim)
		}
	}

	var clf *model.Classifier
	data, err := t.opts.Store.Get(ctx, t.key(keyClassifier))
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("trainer: load classifier: %w", err)
	default:
		clf, err = model.UnmarshalClassifier([]byte(data))
		if err != nil {
			return fmt.Errorf("%w: %v", dataset.ErrStorageCorrupt, err)
		}
		if clf.InputDim() != t.opts.EmbeddingDim || clf.NumClasses() != t.opts.NumClasses {
			return fmt.Errorf("%w: stored classifier is %d → %d, want %d → %d", dataset.ErrStorageCorrupt,
				clf.InputDim(), clf.NumClasses(), t.opts.EmbeddingDim, t.opts.NumClasses)
		}
	}

	t.set.Replace(examples)
	if clf != nil {
		t.clf = clf
		t.trained = true
	}
	t.log.Info("loaded training set", "examples", len(examples), "classifier", clf != nil)
	return nil
}

// Forget deletes everything Save wrote.
func (t *Trainer) Forget(ctx context.Context) error {
	if t.opts.Store == nil {
		return errNoStore
	}
	for _, name := range []string{keyActivations, keyLabels, keyClassifier} {
		if err := t.opts.Store.Delete(ctx, t.key(name)); err != nil {
			return fmt.Errorf("trainer: forget %s: %w", name, err)
		}
	}
	return nil
}
