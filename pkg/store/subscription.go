package store

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is one observer's queue of encoded messages. The store closes
// Messages when the observer is removed.
type Subscription struct {
	id        string
	sessionID string

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newSubscription(sessionID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 256
	}
	return &Subscription{
		id:        uuid.NewString(),
		sessionID: sessionID,
		ch:        make(chan []byte, buffer),
	}
}

func (s *Subscription) ID() string        { return s.id }
func (s *Subscription) SessionID() string { return s.sessionID }

// Messages yields encoded JSON messages in delivery order.
func (s *Subscription) Messages() <-chan []byte { return s.ch }

// Push enqueues a message without blocking. It reports false when the queue
// is full or closed.
func (s *Subscription) Push(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.ch)
	return true
}

func (s *Subscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
