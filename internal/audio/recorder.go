package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// chunkBuffer is how many capture callbacks may queue before chunks are dropped.
const chunkBuffer = 64

// Recorder streams audio from the default microphone as mono float32 chunks.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	channels   uint32
	log        *slog.Logger

	mu        sync.Mutex
	ch        chan []float32
	recording bool
	dropped   int
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(sampleRate, channels uint32, logger *slog.Logger) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		log:        logger,
	}

	return r, nil
}

// SampleRate returns the capture sample rate in Hz.
func (r *Recorder) SampleRate() uint32 {
	return r.sampleRate
}

// Start begins capturing audio from the default microphone. Captured
// frames are downmixed to mono and delivered on the returned channel,
// which is closed by Stop.
func (r *Recorder) Start() (<-chan []float32, error) {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return nil, fmt.Errorf("already recording")
	}
	r.ch = make(chan []float32, chunkBuffer)
	r.recording = true
	r.dropped = 0
	ch := r.ch
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: r.onData,
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.abort()
		return nil, fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.abort()
		return nil, fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return ch, nil
}

// abort undoes the bookkeeping of a failed Start.
func (r *Recorder) abort() {
	r.mu.Lock()
	r.recording = false
	close(r.ch)
	r.ch = nil
	r.mu.Unlock()
}

// Stop ends the audio capture and closes the chunk channel. It is a no-op
// when not recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	// onData checks recording under mu, so nothing is sent after this.
	r.recording = false
	close(r.ch)
	r.ch = nil
	device := r.device
	r.device = nil
	dropped := r.dropped
	r.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if dropped > 0 {
		r.log.Warn("audio chunks dropped", "count", dropped)
	}
	return nil
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	_ = r.Stop()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured audio frames as raw bytes (float32 format).
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	samples := downmix(bytesToFloat32(pSample, frameCount*r.channels), int(r.channels))

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	select {
	case r.ch <- samples:
	default:
		r.dropped++
	}
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}

// downmix averages interleaved channels into a mono signal.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float32, len(samples)/channels)
	for i := range mono {
		sum := float32(0)
		for c := 0; c < channels; c++ {
			sum += samples[i*channels+c]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
