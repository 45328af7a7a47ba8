package turn

import (
	"sync"
	"time"
)

// StateChange represents a state transition event.
type StateChange struct {
	FromState State
	ToState   State
	Timestamp time.Time
	Reason    string
}

// StateListener observes turn state changes.
type StateListener interface {
	OnStateChange(event StateChange)
}

// ListenerFunc adapts a function to StateListener.
type ListenerFunc func(event StateChange)

func (f ListenerFunc) OnStateChange(event StateChange) { f(event) }

var validTransitions = map[State][]State{
	StateInit:      {StateListening, StateEnded},
	StateListening: {StateThinking, StateEnded},
	StateThinking:  {StateSpeaking, StateListening, StateEnded},
	StateSpeaking:  {StateListening, StateEnded},
}

// Machine is the per-session state machine. All methods are safe for
// concurrent use; listeners run outside the lock.
type Machine struct {
	mu        sync.RWMutex
	current   State
	enteredAt time.Time
	listeners []StateListener
	now       func() time.Time
}

func NewMachine() *Machine {
	return &Machine{current: StateInit, enteredAt: time.Now(), now: time.Now}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is reports whether the current state is one of states.
func (m *Machine) Is(states ...State) bool {
	cur := m.State()
	for _, s := range states {
		if s == cur {
			return true
		}
	}
	return false
}

// EnteredAt returns when the current state was entered.
func (m *Machine) EnteredAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enteredAt
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (m *Machine) Transition(to State, reason string) error {
	m.mu.Lock()
	if !transitionValid(m.current, to) {
		err := &InvalidTransitionError{From: m.current, To: to}
		m.mu.Unlock()
		return err
	}
	event := m.applyLocked(to, reason)
	listeners := append([]StateListener(nil), m.listeners...)
	m.mu.Unlock()

	notify(listeners, event)
	return nil
}

// End moves to ENDED from any state. It returns false when the machine had
// already ended.
func (m *Machine) End(reason string) bool {
	m.mu.Lock()
	if m.current == StateEnded {
		m.mu.Unlock()
		return false
	}
	event := m.applyLocked(StateEnded, reason)
	listeners := append([]StateListener(nil), m.listeners...)
	m.mu.Unlock()

	notify(listeners, event)
	return true
}

func (m *Machine) applyLocked(to State, reason string) StateChange {
	now := m.now()
	event := StateChange{FromState: m.current, ToState: to, Timestamp: now, Reason: reason}
	m.current = to
	m.enteredAt = now
	return event
}

func notify(listeners []StateListener, event StateChange) {
	for _, listener := range listeners {
		listener.OnStateChange(event)
	}
}

// AddListener registers a listener for state change events.
func (m *Machine) AddListener(listener StateListener) {
	if listener == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}
