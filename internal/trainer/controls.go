package trainer

import "sync"

// Listen toggle captions.
const (
	ListenLabel = "Listen"
	StopLabel   = "Stop"
)

// ControlState is what the interactive surface may do right now.
type ControlState struct {
	// Enabled gates the collect and train controls.
	Enabled bool
	// ListenEnabled gates the listen toggle.
	ListenEnabled bool
	// ListenLabel is the caption of the listen toggle.
	ListenLabel string
}

var (
	idleControls     = ControlState{Enabled: true, ListenEnabled: true, ListenLabel: ListenLabel}
	disabledControls = ControlState{ListenLabel: ListenLabel}
	listenControls   = ControlState{ListenEnabled: true, ListenLabel: StopLabel}
)

// controls holds the current ControlState and reports every change.
type controls struct {
	mu       sync.Mutex
	state    ControlState
	onChange func(ControlState)
}

func newControls(onChange func(ControlState)) *controls {
	return &controls{state: idleControls, onChange: onChange}
}

func (c *controls) set(s ControlState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.onChange != nil {
		c.onChange(s)
	}
}

func (c *controls) get() ControlState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
