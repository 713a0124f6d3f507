package recognizer

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-slider/internal/features"
)

// Subscription is a running stream of frames.
type Subscription struct {
	id       string
	stopSrc  func() error
	log      *slog.Logger
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// mu is held for the duration of every onFrame call.
	mu        sync.Mutex
	cancelled bool
	delivered int
}

func newSubscription(stopSrc func() error, logger *slog.Logger) *Subscription {
	return &Subscription{
		id:      uuid.NewString(),
		stopSrc: stopSrc,
		log:     logger,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string {
	return s.id
}

// Cancel stops the subscription. When Cancel returns, onFrame is not
// running and will never be called again. It must not be called from
// inside onFrame. Calling it more than once is safe.
func (s *Subscription) Cancel() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		n := s.delivered
		s.mu.Unlock()

		close(s.quit)
		if err := s.stopSrc(); err != nil {
			s.log.Warn("stopping audio source", "subscription", s.id, "err", err)
		}
		s.log.Debug("stream cancelled", "subscription", s.id, "frames", n)
	})
}

// Done is closed once the subscription has stopped delivering frames,
// either because it was cancelled or because the source ran out.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Delivered returns the number of frames handed to onFrame so far.
func (s *Subscription) Delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivered
}

func (s *Subscription) run(ch <-chan []float32, f *framer, ext *features.Extractor, opts StreamOptions, onFrame func(Frame)) {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		case chunk, ok := <-ch:
			if !ok {
				return
			}
			for _, win := range f.push(chunk) {
				var emb []float32
				if opts.IncludeEmbedding {
					var err error
					emb, err = ext.Extract(win)
					if err != nil {
						s.log.Warn("extracting embedding", "subscription", s.id, "err", err)
						continue
					}
				}
				if !s.deliver(emb, onFrame) {
					return
				}
			}
		}
	}
}

// deliver calls onFrame unless the subscription has been cancelled.
func (s *Subscription) deliver(emb []float32, onFrame func(Frame)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return false
	}
	onFrame(Frame{Index: s.delivered, Embedding: emb})
	s.delivered++
	return true
}
