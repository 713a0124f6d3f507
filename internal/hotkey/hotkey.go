// Package hotkey provides global hotkey bindings using gohook.
//
// Collect bindings are held: pressing starts collecting for a label and
// releasing stops it. Train and listen bindings fire once per press. Key
// auto-repeat while a combo is held does not produce extra presses.
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/chaz8081/gostt-slider/internal/config"
)

// Action is what a binding triggers.
type Action int

const (
	// ActionCollect collects examples for Binding.Label while held.
	ActionCollect Action = iota
	// ActionTrain starts a training run.
	ActionTrain
	// ActionListen toggles listening.
	ActionListen
)

func (a Action) String() string {
	switch a {
	case ActionCollect:
		return "collect"
	case ActionTrain:
		return "train"
	case ActionListen:
		return "listen"
	default:
		return "unknown"
	}
}

// Binding ties a key combo to an action.
type Binding struct {
	Action Action
	Label  int // class index for ActionCollect
	Keys   []string
}

// EventType indicates whether a combo went down or up.
type EventType int

const (
	// EventPress signals that the combo was pressed.
	EventPress EventType = iota
	// EventRelease signals that a held collect combo was released.
	EventRelease
)

// Event is emitted on the channel returned by Events.
type Event struct {
	Type    EventType
	Binding Binding
}

// BindingsFromConfig returns one collect binding per class followed by the
// train and listen bindings.
func BindingsFromConfig(cfg *config.Config) []Binding {
	bs := make([]Binding, 0, len(cfg.Classes)+2)
	for i, cl := range cfg.Classes {
		bs = append(bs, Binding{Action: ActionCollect, Label: i, Keys: cl.Keys})
	}
	bs = append(bs,
		Binding{Action: ActionTrain, Keys: cfg.Hotkey.Train},
		Binding{Action: ActionListen, Keys: cfg.Hotkey.Listen},
	)
	return bs
}

// Listener watches a set of bindings and emits events.
//
// It keeps its own view of which keys are down rather than relying on
// gohook's per-combo callbacks, which fire for at most one combo per key
// up and so lose releases when bindings share modifiers.
type Listener struct {
	bindings []Binding
	codes    [][]uint16
	ch       chan Event
	done     chan struct{}
	once     sync.Once

	mu   sync.Mutex
	down map[uint16]bool
	held []bool
}

// NewListener creates a Listener for bindings.
// Keys should be lowercase key names (e.g., ["ctrl", "shift", "u"]).
func NewListener(bindings []Binding) *Listener {
	codes := make([][]uint16, len(bindings))
	for i, b := range bindings {
		for _, k := range b.Keys {
			codes[i] = append(codes[i], hook.Keycode[k])
		}
	}
	return &Listener{
		bindings: bindings,
		codes:    codes,
		ch:       make(chan Event, 16),
		done:     make(chan struct{}),
		down:     make(map[uint16]bool),
		held:     make([]bool, len(bindings)),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the bindings.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	for ev := range evChan {
		switch ev.Kind {
		case hook.KeyDown, hook.KeyHold:
			l.keyDown(ev.Keycode)
		case hook.KeyUp:
			l.keyUp(ev.Keycode)
		}
	}
	close(l.ch)
}

// keyDown records code as down and presses every binding whose combo is
// now complete.
func (l *Listener) keyDown(code uint16) {
	l.mu.Lock()
	l.down[code] = true
	var fire []int
	for i := range l.bindings {
		if !l.held[i] && l.comboDown(i) {
			fire = append(fire, i)
		}
	}
	l.mu.Unlock()
	for _, i := range fire {
		l.press(i)
	}
}

// keyUp records code as up and releases every held binding whose combo is
// no longer complete.
func (l *Listener) keyUp(code uint16) {
	l.mu.Lock()
	delete(l.down, code)
	var fire []int
	for i := range l.bindings {
		if l.held[i] && !l.comboDown(i) {
			fire = append(fire, i)
		}
	}
	l.mu.Unlock()
	for _, i := range fire {
		l.release(i)
	}
}

func (l *Listener) comboDown(i int) bool {
	if len(l.codes[i]) == 0 {
		return false
	}
	for _, c := range l.codes[i] {
		if !l.down[c] {
			return false
		}
	}
	return true
}

// press emits a press event for binding i unless it is already held.
func (l *Listener) press(i int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[i] {
		return
	}
	l.held[i] = true
	l.emit(Event{Type: EventPress, Binding: l.bindings[i]})
}

// release clears the held state for binding i. Only collect bindings emit
// a release event.
func (l *Listener) release(i int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held[i] {
		return
	}
	l.held[i] = false
	if l.bindings[i].Action == ActionCollect {
		l.emit(Event{Type: EventRelease, Binding: l.bindings[i]})
	}
}

func (l *Listener) emit(ev Event) {
	select {
	case l.ch <- ev:
	default: // don't block if channel is full
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
