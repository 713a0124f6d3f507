package trainer

import "github.com/chaz8081/gostt-slider/internal/recognizer"

// Stream is an active frame subscription.
type Stream interface {
	// Cancel stops the stream. No frame callback runs after it returns.
	Cancel()
	// Done is closed once the stream delivers no more frames.
	Done() <-chan struct{}
}

// FrameSource starts frame subscriptions. *recognizer.Recognizer satisfies
// it through FromRecognizer.
type FrameSource interface {
	Stream(onFrame func(recognizer.Frame), opts recognizer.StreamOptions) (Stream, error)
}

type recognizerSource struct {
	r *recognizer.Recognizer
}

// FromRecognizer adapts a Recognizer to a FrameSource.
func FromRecognizer(r *recognizer.Recognizer) FrameSource {
	return recognizerSource{r: r}
}

func (s recognizerSource) Stream(onFrame func(recognizer.Frame), opts recognizer.StreamOptions) (Stream, error) {
	sub, err := s.r.Stream(onFrame, opts)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
