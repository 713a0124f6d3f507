// Package model implements the classifier head trained on top of the frozen
// embeddings: a single dense layer with softmax output, fitted by
// mini-batch SGD on categorical cross-entropy.
//
// Matrix work is done with gonum. Large intermediate matrices are drawn
// from a Pool through a Scope so they are returned on every exit path.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// lossEpsilon keeps log() finite when a probability underflows to zero.
const lossEpsilon = 1e-7

// FitOptions controls a training run.
type FitOptions struct {
	BatchSize    int
	Epochs       int
	LearningRate float64
	// Shuffle reorders examples at the start of every epoch.
	Shuffle bool
	// OnEpochEnd is called after each epoch with the mean cross-entropy
	// over that epoch. Optional.
	OnEpochEnd func(epoch int, loss float64)
}

// Classifier is a dense inputDim → numClasses layer with softmax output.
type Classifier struct {
	inputDim   int
	numClasses int

	mu      sync.RWMutex
	weights *mat.Dense // inputDim × numClasses
	bias    []float64
	rng     *rand.Rand
	pool    *Pool
}

// NewClassifier returns a classifier with Glorot-uniform weights and zero
// bias, initialized deterministically from seed.
func NewClassifier(inputDim, numClasses int, seed uint64) (*Classifier, error) {
	if inputDim <= 0 || numClasses <= 0 {
		return nil, fmt.Errorf("%w: classifier %d → %d", ErrShape, inputDim, numClasses)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	limit := math.Sqrt(6 / float64(inputDim+numClasses))
	w := make([]float64, inputDim*numClasses)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}

	return &Classifier{
		inputDim:   inputDim,
		numClasses: numClasses,
		weights:    mat.NewDense(inputDim, numClasses, w),
		bias:       make([]float64, numClasses),
		rng:        rng,
		pool:       NewPool(),
	}, nil
}

// InputDim returns the expected embedding length.
func (c *Classifier) InputDim() int { return c.inputDim }

// NumClasses returns the number of output classes.
func (c *Classifier) NumClasses() int { return c.numClasses }

// Fit trains the classifier on xs (N × inputDim) against one-hot targets
// ys (N × numClasses) and returns the mean loss of each epoch. ctx is
// checked between batches; on cancellation the weights keep whatever
// progress was made.
func (c *Classifier) Fit(ctx context.Context, xs, ys *mat.Dense, opts FitOptions) ([]float64, error) {
	n, d := xs.Dims()
	yn, yc := ys.Dims()
	if d != c.inputDim || yc != c.numClasses || yn != n {
		return nil, fmt.Errorf("%w: xs %d×%d, ys %d×%d, classifier %d → %d",
			ErrShape, n, d, yn, yc, c.inputDim, c.numClasses)
	}
	if opts.BatchSize <= 0 || opts.Epochs <= 0 || opts.LearningRate <= 0 {
		return nil, fmt.Errorf("model: invalid fit options %+v", opts)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bs := min(opts.BatchSize, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	losses := make([]float64, 0, opts.Epochs)
	err := Tidy(c.pool, func(s *Scope) error {
		xbFull := s.Dense(bs, d)
		ybFull := s.Dense(bs, c.numClasses)
		pFull := s.Dense(bs, c.numClasses)
		grad := s.Dense(d, c.numClasses)

		for epoch := 0; epoch < opts.Epochs; epoch++ {
			if opts.Shuffle {
				c.rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
			}

			total := 0.0
			for start := 0; start < n; start += bs {
				if err := ctx.Err(); err != nil {
					return err
				}
				b := min(bs, n-start)
				xb := xbFull.Slice(0, b, 0, d).(*mat.Dense)
				yb := ybFull.Slice(0, b, 0, c.numClasses).(*mat.Dense)
				p := pFull.Slice(0, b, 0, c.numClasses).(*mat.Dense)

				for r := 0; r < b; r++ {
					xb.SetRow(r, xs.RawRowView(order[start+r]))
					yb.SetRow(r, ys.RawRowView(order[start+r]))
				}
				total += c.step(xb, yb, p, grad, opts.LearningRate)
			}

			loss := total / float64(n)
			losses = append(losses, loss)
			if opts.OnEpochEnd != nil {
				opts.OnEpochEnd(epoch, loss)
			}
		}
		return nil
	})
	return losses, err
}

// step runs one SGD update on a batch and returns the summed loss.
// p and grad are scratch matrices sized for the batch.
func (c *Classifier) step(xb, yb, p, grad *mat.Dense, lr float64) float64 {
	b, _ := xb.Dims()

	p.Mul(xb, c.weights)
	loss := 0.0
	for r := 0; r < b; r++ {
		row := p.RawRowView(r)
		for k := range row {
			row[k] += c.bias[k]
		}
		softmaxInPlace(row)
		target := yb.RawRowView(r)
		for k, pk := range row {
			if target[k] != 0 {
				loss -= target[k] * math.Log(pk+lossEpsilon)
			}
			// d(loss)/d(logit) for softmax + cross-entropy, averaged over the batch.
			row[k] = (pk - target[k]) / float64(b)
		}
	}

	grad.Mul(xb.T(), p)
	grad.Scale(lr, grad)
	c.weights.Sub(c.weights, grad)

	for k := range c.bias {
		g := 0.0
		for r := 0; r < b; r++ {
			g += p.At(r, k)
		}
		c.bias[k] -= lr * g
	}
	return loss
}

// Predict returns class probabilities for one embedding.
func (c *Classifier) Predict(x []float32) ([]float64, error) {
	if len(x) != c.inputDim {
		return nil, fmt.Errorf("%w: embedding has %d values, want %d", ErrShape, len(x), c.inputDim)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]float64, c.numClasses)
	copy(out, c.bias)
	for j, v := range x {
		if v == 0 {
			continue
		}
		row := c.weights.RawRowView(j)
		for k, w := range row {
			out[k] += float64(v) * w
		}
	}
	softmaxInPlace(out)
	return out, nil
}

// classifierJSON is the stored form of a Classifier.
type classifierJSON struct {
	InputDim   int       `json:"input_dim"`
	NumClasses int       `json:"num_classes"`
	Weights    []float64 `json:"weights"` // row-major inputDim × numClasses
	Bias       []float64 `json:"bias"`
}

// MarshalJSON encodes the trained parameters.
func (c *Classifier) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw := c.weights.RawMatrix()
	w := make([]float64, 0, c.inputDim*c.numClasses)
	for i := 0; i < raw.Rows; i++ {
		w = append(w, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols]...)
	}
	return json.Marshal(classifierJSON{
		InputDim:   c.inputDim,
		NumClasses: c.numClasses,
		Weights:    w,
		Bias:       c.bias,
	})
}

// UnmarshalClassifier decodes a classifier produced by MarshalJSON.
func UnmarshalClassifier(data []byte) (*Classifier, error) {
	var cj classifierJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return nil, fmt.Errorf("model: decode classifier: %w", err)
	}
	if cj.InputDim <= 0 || cj.NumClasses <= 0 ||
		len(cj.Weights) != cj.InputDim*cj.NumClasses || len(cj.Bias) != cj.NumClasses {
		return nil, fmt.Errorf("%w: stored classifier %d → %d with %d weights and %d biases",
			ErrShape, cj.InputDim, cj.NumClasses, len(cj.Weights), len(cj.Bias))
	}
	return &Classifier{
		inputDim:   cj.InputDim,
		numClasses: cj.NumClasses,
		weights:    mat.NewDense(cj.InputDim, cj.NumClasses, cj.Weights),
		bias:       cj.Bias,
		rng:        rand.New(rand.NewPCG(1, 2)),
		pool:       NewPool(),
	}, nil
}
