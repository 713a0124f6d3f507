package audio

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

// DefaultChunkSize is the number of samples per chunk a WAVSource emits.
const DefaultChunkSize = 1024

// WAVSource replays a WAV file as a Source, resampled to a target rate.
type WAVSource struct {
	path       string
	sampleRate uint32
	chunkSize  int

	mu      sync.Mutex
	stop    chan struct{}
	running bool
}

// NewWAVSource creates a source that streams the file at path, resampled
// to sampleRate.
func NewWAVSource(path string, sampleRate uint32) *WAVSource {
	return &WAVSource{
		path:       path,
		sampleRate: sampleRate,
		chunkSize:  DefaultChunkSize,
	}
}

// SampleRate returns the rate of the delivered samples in Hz.
func (w *WAVSource) SampleRate() uint32 {
	return w.sampleRate
}

// Start decodes the whole file and streams it in chunks from a goroutine.
// The channel is closed after the last chunk.
func (w *WAVSource) Start() (<-chan []float32, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, fmt.Errorf("already streaming %s", w.path)
	}
	w.mu.Unlock()

	samples, rate, err := DecodeWAV(w.path)
	if err != nil {
		return nil, err
	}
	samples, err = Resample(samples, rate, w.sampleRate)
	if err != nil {
		return nil, err
	}

	ch := make(chan []float32)
	stop := make(chan struct{})

	w.mu.Lock()
	w.running = true
	w.stop = stop
	w.mu.Unlock()

	go func() {
		defer close(ch)
		defer func() {
			w.mu.Lock()
			if w.stop == stop {
				w.running = false
			}
			w.mu.Unlock()
		}()
		for start := 0; start < len(samples); start += w.chunkSize {
			end := min(start+w.chunkSize, len(samples))
			select {
			case ch <- samples[start:end]:
			case <-stop:
				return
			}
		}
	}()

	return ch, nil
}

// Stop ends streaming early. The channel is closed once the streaming
// goroutine observes the stop.
func (w *WAVSource) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	close(w.stop)
	w.running = false
	return nil
}

// DecodeWAV reads a PCM WAV file and returns its mono float32 samples and
// sample rate.
func DecodeWAV(path string) ([]float32, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("decoding wav %s: not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decoding wav %s: %w", path, err)
	}

	if dec.BitDepth == 0 {
		return nil, 0, fmt.Errorf("decoding wav %s: missing bit depth", path)
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	scale := float32(int64(1) << (dec.BitDepth - 1))
	// 8-bit PCM is unsigned with silence at 128; wider depths are signed.
	var offset int
	if dec.BitDepth == 8 {
		offset = 128
	}

	interleaved := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		interleaved[i] = float32(s-offset) / scale
	}
	return downmix(interleaved, channels), uint32(buf.Format.SampleRate), nil
}

// Resample converts mono samples from one rate to another. Equal rates
// return the input unchanged.
func Resample(samples []float32, from, to uint32) ([]float32, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("creating resampler %d→%d Hz: %w", from, to, err)
	}

	out, err := rs.ProcessFloat32(samples)
	if err != nil {
		return nil, fmt.Errorf("resampling %d→%d Hz: %w", from, to, err)
	}
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("flushing resampler %d→%d Hz: %w", from, to, err)
	}

	res := make([]float32, 0, len(out)+len(tail))
	res = append(res, out...)
	for _, s := range tail {
		res = append(res, float32(s))
	}
	return res, nil
}
