package hotkey

import (
	"testing"

	"github.com/chaz8081/gostt-slider/internal/config"
)

func drain(l *Listener) []Event {
	var evs []Event
	for {
		select {
		case ev := <-l.ch:
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestBindingsFromConfig(t *testing.T) {
	cfg := config.Default()
	bs := BindingsFromConfig(cfg)

	if len(bs) != len(cfg.Classes)+2 {
		t.Fatalf("got %d bindings, want %d", len(bs), len(cfg.Classes)+2)
	}
	for i := range cfg.Classes {
		if bs[i].Action != ActionCollect || bs[i].Label != i {
			t.Errorf("binding %d = %+v, want collect for label %d", i, bs[i], i)
		}
	}
	if bs[len(bs)-2].Action != ActionTrain {
		t.Errorf("second to last binding = %v, want train", bs[len(bs)-2].Action)
	}
	if bs[len(bs)-1].Action != ActionListen {
		t.Errorf("last binding = %v, want listen", bs[len(bs)-1].Action)
	}
}

func TestCollectHoldIgnoresAutoRepeat(t *testing.T) {
	l := NewListener([]Binding{{Action: ActionCollect, Label: 1, Keys: []string{"u"}}})

	l.press(0)
	l.press(0) // auto-repeat
	l.press(0)
	l.release(0)
	l.release(0)

	evs := drain(l)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(evs), evs)
	}
	if evs[0].Type != EventPress || evs[0].Binding.Label != 1 {
		t.Errorf("first event = %+v, want press for label 1", evs[0])
	}
	if evs[1].Type != EventRelease {
		t.Errorf("second event = %+v, want release", evs[1])
	}
}

func TestTriggerBindingsOnlyPress(t *testing.T) {
	l := NewListener([]Binding{
		{Action: ActionTrain, Keys: []string{"t"}},
		{Action: ActionListen, Keys: []string{"l"}},
	})

	l.press(0)
	l.release(0)
	l.press(1)
	l.press(1)
	l.release(1)
	l.press(1)

	evs := drain(l)
	want := []Action{ActionTrain, ActionListen, ActionListen}
	if len(evs) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(evs), len(want), evs)
	}
	for i, a := range want {
		if evs[i].Type != EventPress || evs[i].Binding.Action != a {
			t.Errorf("event %d = %+v, want press for %v", i, evs[i], a)
		}
	}
}

// Test key codes. They stand in for hook.Keycode values so the tests do
// not depend on the platform key map.
const (
	keyCtrl uint16 = iota + 1
	keyShift
	keyU
	keyD
	keyT
)

// sharedModifierListener binds ctrl+shift+{u,d} to collect and ctrl+shift+t
// to train, like the default config.
func sharedModifierListener() *Listener {
	l := NewListener([]Binding{
		{Action: ActionCollect, Label: 0, Keys: []string{"ctrl", "shift", "u"}},
		{Action: ActionCollect, Label: 1, Keys: []string{"ctrl", "shift", "d"}},
		{Action: ActionTrain, Keys: []string{"ctrl", "shift", "t"}},
	})
	l.codes = [][]uint16{
		{keyCtrl, keyShift, keyU},
		{keyCtrl, keyShift, keyD},
		{keyCtrl, keyShift, keyT},
	}
	return l
}

func TestReleaseWithStaleKeyAndSharedModifiers(t *testing.T) {
	l := sharedModifierListener()

	// A stray u typed earlier must not matter.
	l.keyDown(keyU)
	l.keyUp(keyU)

	l.keyDown(keyCtrl)
	l.keyDown(keyShift)
	l.keyDown(keyD)
	l.keyDown(keyD) // auto-repeat
	l.keyUp(keyD)
	l.keyUp(keyShift)
	l.keyUp(keyCtrl)

	evs := drain(l)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(evs), evs)
	}
	if evs[0].Type != EventPress || evs[0].Binding.Label != 1 {
		t.Errorf("first event = %+v, want press for label 1", evs[0])
	}
	if evs[1].Type != EventRelease || evs[1].Binding.Label != 1 {
		t.Errorf("second event = %+v, want release for label 1", evs[1])
	}
}

func TestReleaseSweepsEveryHeldBinding(t *testing.T) {
	l := sharedModifierListener()

	l.keyDown(keyCtrl)
	l.keyDown(keyShift)
	l.keyDown(keyU)
	l.keyDown(keyD)
	// Dropping a shared modifier breaks both combos at once.
	l.keyUp(keyShift)

	var releases []int
	for _, ev := range drain(l) {
		if ev.Type == EventRelease {
			releases = append(releases, ev.Binding.Label)
		}
	}
	if len(releases) != 2 || releases[0] != 0 || releases[1] != 1 {
		t.Errorf("released labels = %v, want [0 1]", releases)
	}
	for i, h := range l.held {
		if h {
			t.Errorf("binding %d still held", i)
		}
	}
}

func TestTriggerPressesAgainAfterRelease(t *testing.T) {
	l := sharedModifierListener()

	for range 2 {
		l.keyDown(keyCtrl)
		l.keyDown(keyShift)
		l.keyDown(keyT)
		l.keyUp(keyT)
		l.keyUp(keyShift)
		l.keyUp(keyCtrl)
	}

	evs := drain(l)
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2 train presses: %+v", len(evs), evs)
	}
	for i, ev := range evs {
		if ev.Type != EventPress || ev.Binding.Action != ActionTrain {
			t.Errorf("event %d = %+v, want train press", i, ev)
		}
	}
}

func TestEmptyComboNeverFires(t *testing.T) {
	l := NewListener([]Binding{{Action: ActionListen}})
	l.keyDown(keyCtrl)
	if evs := drain(l); len(evs) != 0 {
		t.Errorf("got %+v, want no events", evs)
	}
}

func TestEmitDoesNotBlockWhenFull(t *testing.T) {
	l := NewListener([]Binding{{Action: ActionTrain}})
	for i := 0; i < cap(l.ch)+5; i++ {
		l.press(0)
		l.release(0)
	}
	if len(l.ch) != cap(l.ch) {
		t.Errorf("channel holds %d events, want %d", len(l.ch), cap(l.ch))
	}
}

func TestStopIdempotent(t *testing.T) {
	l := NewListener(nil)
	l.Stop()
	l.Stop()
	select {
	case <-l.done:
	default:
		t.Error("done should be closed after Stop()")
	}
}

func TestActionString(t *testing.T) {
	for a, want := range map[Action]string{ActionCollect: "collect", ActionTrain: "train", ActionListen: "listen", Action(9): "unknown"} {
		if a.String() != want {
			t.Errorf("Action(%d).String() = %q, want %q", a, a.String(), want)
		}
	}
}
