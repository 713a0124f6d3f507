// Package features turns fixed-length windows of mono audio into embedding
// vectors.
//
// The front end is frozen: a log-power spectrogram (non-overlapping
// FFTSize columns, bins averaged into NumBands bands, normalized over the
// window) followed by a seeded Gaussian random projection and ReLU. The
// same seed always yields the same embedding for the same audio, so
// embeddings collected in one session remain valid in the next.
package features

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FFTSize is the length of each spectrogram column in samples.
const FFTSize = 512

// logFloor keeps log() finite for silent bands.
const logFloor = 1e-10

// Config controls embedding extraction.
type Config struct {
	WindowSamples int    // samples per embedding window, at least FFTSize
	NumBands      int    // spectral bands per column, at most FFTSize/2+1
	EmbeddingDim  int    // length of the output embedding
	Seed          uint64 // projection seed
}

// Extractor computes embeddings. It is safe for concurrent use once built.
type Extractor struct {
	cfg     Config
	columns int
	bands   [][2]int // [lo, hi) FFT bin range per band
	window  []float64
	proj    *mat.Dense // EmbeddingDim × (columns*NumBands)
}

// New builds an Extractor, generating its projection from cfg.Seed.
func New(cfg Config) (*Extractor, error) {
	halfFFT := FFTSize/2 + 1
	if cfg.WindowSamples < FFTSize {
		return nil, fmt.Errorf("features: window of %d samples is shorter than FFT size %d", cfg.WindowSamples, FFTSize)
	}
	if cfg.NumBands <= 0 || cfg.NumBands > halfFFT {
		return nil, fmt.Errorf("features: num_bands %d outside [1, %d]", cfg.NumBands, halfFFT)
	}
	if cfg.EmbeddingDim <= 0 {
		return nil, fmt.Errorf("features: embedding_dim must be > 0")
	}

	e := &Extractor{
		cfg:     cfg,
		columns: cfg.WindowSamples / FFTSize,
		bands:   bandEdges(halfFFT, cfg.NumBands),
		window:  hannWindow(FFTSize),
	}

	inputLen := e.columns * cfg.NumBands
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	scale := 1 / math.Sqrt(float64(inputLen))
	data := make([]float64, cfg.EmbeddingDim*inputLen)
	for i := range data {
		data[i] = rng.NormFloat64() * scale
	}
	e.proj = mat.NewDense(cfg.EmbeddingDim, inputLen, data)

	return e, nil
}

// WindowSamples returns the number of samples Extract expects.
func (e *Extractor) WindowSamples() int { return e.cfg.WindowSamples }

// EmbeddingDim returns the length of the embeddings produced.
func (e *Extractor) EmbeddingDim() int { return e.cfg.EmbeddingDim }

// Extract computes the embedding for exactly WindowSamples samples.
func (e *Extractor) Extract(samples []float32) ([]float32, error) {
	if len(samples) != e.cfg.WindowSamples {
		return nil, fmt.Errorf("features: got %d samples, want %d", len(samples), e.cfg.WindowSamples)
	}

	spectro := e.spectrogram(samples)
	normalize(spectro)

	out := mat.NewVecDense(e.cfg.EmbeddingDim, nil)
	out.MulVec(e.proj, mat.NewVecDense(len(spectro), spectro))

	emb := make([]float32, e.cfg.EmbeddingDim)
	for i := range emb {
		if v := out.AtVec(i); v > 0 {
			emb[i] = float32(v)
		}
	}
	return emb, nil
}

// spectrogram returns the flattened [columns][NumBands] log band energies.
func (e *Extractor) spectrogram(samples []float32) []float64 {
	fft := fourier.NewFFT(FFTSize)
	seq := make([]float64, FFTSize)
	coeffs := make([]complex128, FFTSize/2+1)
	spectro := make([]float64, 0, e.columns*e.cfg.NumBands)

	for c := 0; c < e.columns; c++ {
		frame := samples[c*FFTSize : (c+1)*FFTSize]
		for i, s := range frame {
			seq[i] = float64(s) * e.window[i]
		}
		coeffs = fft.Coefficients(coeffs, seq)

		for _, b := range e.bands {
			sum := 0.0
			for k := b[0]; k < b[1]; k++ {
				re, im := real(coeffs[k]), imag(coeffs[k])
				sum += re*re + im*im
			}
			spectro = append(spectro, math.Log(sum/float64(b[1]-b[0])+logFloor))
		}
	}
	return spectro
}

// normalize rescales v in place to zero mean and unit variance, like
// CMVN over the whole window.
func normalize(v []float64) {
	mean, std := stat.PopMeanStdDev(v, nil)
	if std < logFloor {
		std = 1
	}
	for i, x := range v {
		v[i] = (x - mean) / std
	}
}

// bandEdges splits n bins into k contiguous, non-empty ranges.
func bandEdges(n, k int) [][2]int {
	edges := make([][2]int, k)
	for i := range edges {
		edges[i] = [2]int{i * n / k, (i + 1) * n / k}
	}
	return edges
}

// hannWindow returns the Hann window coefficients for n samples.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)
}
