package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errConnClosed  = errors.New("connection closed")
	errSendTimeout = errors.New("send timed out")
)

type outbound struct {
	kind int
	data []byte
}

// clientConn owns the write side of one websocket. A single writer goroutine
// performs every write; senders block for at most the write timeout.
type clientConn struct {
	conn         *websocket.Conn
	sendCh       chan outbound
	done         chan struct{}
	loopDone     chan struct{}
	closeOnce    sync.Once
	closeErr     error
	writeTimeout time.Duration
	pingInterval time.Duration
}

func newClientConn(conn *websocket.Conn, writeTimeout, pingInterval time.Duration) *clientConn {
	c := &clientConn{
		conn:         conn,
		sendCh:       make(chan outbound, 256),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
	go c.loop()
	return c
}

func (c *clientConn) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(websocket.TextMessage, b)
}

// SendText queues an already encoded JSON message.
func (c *clientConn) SendText(b []byte) error {
	return c.enqueue(websocket.TextMessage, b)
}

func (c *clientConn) SendAudio(pcm []byte) error {
	return c.enqueue(websocket.BinaryMessage, pcm)
}

func (c *clientConn) enqueue(kind int, data []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	case <-c.loopDone:
		return errConnClosed
	default:
	}
	timer := time.NewTimer(c.writeTimeout)
	defer timer.Stop()
	select {
	case c.sendCh <- outbound{kind: kind, data: data}:
		return nil
	case <-c.done:
		return errConnClosed
	case <-c.loopDone:
		return errConnClosed
	case <-timer.C:
		return errSendTimeout
	}
}

func (c *clientConn) loop() {
	defer close(c.loopDone)
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case msg := <-c.sendCh:
			if err := c.write(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
		}
	}
}

// flush writes whatever was queued before Close, so a final error message
// still reaches the client.
func (c *clientConn) flush() {
	for {
		select {
		case msg := <-c.sendCh:
			if err := c.write(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *clientConn) write(msg outbound) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(msg.kind, msg.data)
}

// Close flushes queued messages, sends a normal close frame and closes the
// socket. Safe to call more than once.
func (c *clientConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		<-c.loopDone
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
