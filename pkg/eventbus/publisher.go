// Package eventbus mirrors store broadcasts onto NATS so other services can
// follow interviews without holding an observer socket.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher implements store.Sink on a NATS connection.
// Messages are published to <prefix>.<session>.<type> from a single
// goroutine. Publish only enqueues; when the queue is full the message is
// dropped and counted.
type Publisher struct {
	conn    conn
	prefix  string
	log     *slog.Logger
	dropped atomic.Int64

	ch     chan outbound
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

type outbound struct {
	subject string
	payload []byte
}

type Options struct {
	URL           string
	Prefix        string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Buffer        int
}

// Connect dials NATS and returns a publisher on the connection.
func Connect(opts Options, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxReconnects == 0 {
		opts.MaxReconnects = -1
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.Name == "" {
		opts.Name = "interview"
	}
	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats_reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			log.Info("nats_closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", opts.URL, err)
	}
	return NewPublisher(nc, opts.Prefix, opts.Buffer, log), nil
}

func NewPublisher(c conn, prefix string, buffer int, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = 1024
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "interview"
	}
	p := &Publisher{
		conn:   c,
		prefix: prefix,
		log:    log,
		ch:     make(chan outbound, buffer),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Publisher) Publish(sessionID, msgType string, payload []byte) {
	msg := outbound{subject: Subject(p.prefix, sessionID, msgType), payload: payload}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- msg:
	default:
		if p.dropped.Add(1) == 1 {
			p.log.Warn("nats_queue_full", "subject", msg.subject)
		}
	}
}

func (p *Publisher) loop() {
	defer close(p.done)
	for msg := range p.ch {
		if err := p.conn.Publish(msg.subject, msg.payload); err != nil {
			if p.dropped.Add(1) == 1 {
				p.log.Warn("nats_publish_failed", "subject", msg.subject, "error", err)
			}
		}
	}
}

// Dropped returns how many messages were not published, either because the
// queue was full or because NATS rejected them.
func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Close stops accepting messages, flushes the queue and drains the
// connection, giving up when ctx ends.
func (p *Publisher) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.ch)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
	case <-ctx.Done():
		return fmt.Errorf("nats flush: %w", ctx.Err())
	}

	done := make(chan error, 1)
	go func() { done <- p.conn.Drain() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("nats drain: %w", ctx.Err())
	}
}

// Subject builds the subject for a session message. Characters NATS treats
// as separators or wildcards are replaced in the session token.
func Subject(prefix, sessionID, msgType string) string {
	return prefix + "." + token(sessionID) + "." + token(msgType)
}

func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
