// Package audio provides the sample sources the recognizer streams from:
// the default microphone via malgo, and WAV files for offline collection.
// Every source delivers mono float32 samples in [-1, 1].
package audio

// Source produces mono audio in chunks.
type Source interface {
	// Start begins producing audio. Chunks arrive on the returned channel,
	// which is closed when the source is stopped or runs out of audio.
	Start() (<-chan []float32, error)
	// Stop ends production and closes the channel. Safe to call when the
	// source is not running.
	Stop() error
	// SampleRate returns the rate of the delivered samples in Hz.
	SampleRate() uint32
}
