package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrStorageCorrupt is returned when stored activations or labels cannot be
// decoded back into a consistent set.
var ErrStorageCorrupt = errors.New("dataset: stored training set is corrupt")

// activation is the stored form of one embedding.
type activation struct {
	Shape  []int     `json:"shape"`
	Values []float32 `json:"values"`
}

// Encode serializes examples into the activations and labels documents.
// Each embedding is stored with shape [1, len(embedding)].
func Encode(examples []Example) (activations, labels string, err error) {
	acts := make([]activation, len(examples))
	labs := make([]int, len(examples))
	for i, ex := range examples {
		acts[i] = activation{
			Shape:  []int{1, len(ex.Embedding)},
			Values: ex.Embedding,
		}
		labs[i] = ex.Label
	}

	a, err := json.Marshal(acts)
	if err != nil {
		return "", "", fmt.Errorf("dataset: encode activations: %w", err)
	}
	l, err := json.Marshal(labs)
	if err != nil {
		return "", "", fmt.Errorf("dataset: encode labels: %w", err)
	}
	return string(a), string(l), nil
}

// Decode rebuilds examples from the activations and labels documents
// produced by Encode.
func Decode(activations, labels string) ([]Example, error) {
	var acts []activation
	if err := json.Unmarshal([]byte(activations), &acts); err != nil {
		return nil, fmt.Errorf("%w: activations: %v", ErrStorageCorrupt, err)
	}
	var labs []int
	if err := json.Unmarshal([]byte(labels), &labs); err != nil {
		return nil, fmt.Errorf("%w: labels: %v", ErrStorageCorrupt, err)
	}
	if len(acts) != len(labs) {
		return nil, fmt.Errorf("%w: %d activations but %d labels", ErrStorageCorrupt, len(acts), len(labs))
	}

	examples := make([]Example, len(acts))
	for i, a := range acts {
		if len(a.Shape) == 0 {
			return nil, fmt.Errorf("%w: activation %d has no shape", ErrStorageCorrupt, i)
		}
		size := 1
		for _, d := range a.Shape {
			if d <= 0 {
				return nil, fmt.Errorf("%w: activation %d has shape %v", ErrStorageCorrupt, i, a.Shape)
			}
			size *= d
		}
		if size != len(a.Values) {
			return nil, fmt.Errorf("%w: activation %d has shape %v but %d values", ErrStorageCorrupt, i, a.Shape, len(a.Values))
		}
		examples[i] = Example{Embedding: a.Values, Label: labs[i]}
	}
	return examples, nil
}
