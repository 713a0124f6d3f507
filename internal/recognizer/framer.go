package recognizer

// framer cuts a sample stream into overlapping windows.
type framer struct {
	window  int
	hop     int
	buf     []float32
	pending int // samples still needed before the next window is complete
}

func newFramer(window, hop int) *framer {
	return &framer{
		window:  window,
		hop:     hop,
		buf:     make([]float32, 0, window),
		pending: window,
	}
}

// push appends samples and returns a copy of every window completed by them.
func (f *framer) push(samples []float32) [][]float32 {
	var out [][]float32
	for len(samples) > 0 {
		n := min(f.pending, len(samples))
		f.buf = append(f.buf, samples[:n]...)
		samples = samples[n:]
		f.pending -= n
		if f.pending > 0 {
			continue
		}

		win := make([]float32, f.window)
		copy(win, f.buf[len(f.buf)-f.window:])
		out = append(out, win)

		keep := max(f.window-f.hop, 0)
		f.buf = f.buf[:copy(f.buf, f.buf[len(f.buf)-keep:])]
		f.pending = f.window - keep
	}
	return out
}
