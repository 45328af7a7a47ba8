package turn

import (
	"errors"
	"sync"
	"testing"
)

type captureListener struct {
	mu     sync.Mutex
	events []StateChange
}

func (c *captureListener) OnStateChange(event StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureListener) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestMachineTurnCycle(t *testing.T) {
	m := NewMachine()
	listener := &captureListener{}
	m.AddListener(listener)

	steps := []State{StateListening, StateThinking, StateSpeaking, StateListening, StateThinking, StateListening}
	for _, s := range steps {
		if err := m.Transition(s, "test"); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if m.State() != StateListening {
		t.Fatalf("expected LISTENING, got %s", m.State())
	}
	if listener.Count() != len(steps) {
		t.Fatalf("expected %d events, got %d", len(steps), listener.Count())
	}
}

func TestMachineRejectsInvalidTransition(t *testing.T) {
	m := NewMachine()
	err := m.Transition(StateThinking, "skip listening")
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StateInit || invalid.To != StateThinking {
		t.Fatalf("unexpected error fields %+v", invalid)
	}
	if m.State() != StateInit {
		t.Fatalf("state changed on invalid transition: %s", m.State())
	}
}

func TestMachineEndIsTerminal(t *testing.T) {
	for _, from := range []State{StateInit, StateListening, StateThinking, StateSpeaking} {
		m := NewMachine()
		m.current = from
		if !m.End("disconnect") {
			t.Fatalf("expected End from %s to succeed", from)
		}
		if m.End("again") {
			t.Fatalf("expected second End from %s to be a no-op", from)
		}
		if err := m.Transition(StateListening, "revive"); err == nil {
			t.Fatalf("expected transition out of ENDED to fail")
		}
		if !m.State().Terminal() {
			t.Fatalf("expected terminal state, got %s", m.State())
		}
	}
}

func TestMachineListenerMayReadState(t *testing.T) {
	m := NewMachine()
	var seen State
	m.AddListener(ListenerFunc(func(ev StateChange) {
		seen = m.State()
	}))
	if err := m.Transition(StateListening, "init"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if seen != StateListening {
		t.Fatalf("listener saw %s", seen)
	}
}

func TestMachineConcurrentEndFiresOnce(t *testing.T) {
	m := NewMachine()
	listener := &captureListener{}
	m.AddListener(listener)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.End("race")
		}()
	}
	wg.Wait()
	if listener.Count() != 1 {
		t.Fatalf("expected one ENDED event, got %d", listener.Count())
	}
}
