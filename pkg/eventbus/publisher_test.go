package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	failWith error
	drain    chan struct{}
	block    chan struct{}
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) Drain() error {
	if f.drain != nil {
		<-f.drain
	}
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSubjectSanitizesSessionToken(t *testing.T) {
	assert.Equal(t, "interview.abc.fused_emotions", Subject("interview", "abc", "fused_emotions"))
	assert.Equal(t, "interview.a_b_c_.face_update", Subject("interview", "a.b*c>", "face_update"))
	assert.Equal(t, "interview._.adaptation", Subject("interview", "", "adaptation"))
}

func TestPublisherPublishesToSubject(t *testing.T) {
	fc := &fakeConn{}
	p := NewPublisher(fc, "demo.", 0, quiet())
	p.Publish("s1", "transcript", []byte(`{"type":"transcript"}`))
	require.NoError(t, p.Close(context.Background()))

	require.Len(t, fc.subjects, 1)
	assert.Equal(t, "demo.s1.transcript", fc.subjects[0])
	assert.JSONEq(t, `{"type":"transcript"}`, string(fc.payloads[0]))
}

func TestPublisherCountsFailures(t *testing.T) {
	fc := &fakeConn{failWith: errors.New("nats: connection closed")}
	p := NewPublisher(fc, "", 0, quiet())
	p.Publish("s1", "a", nil)
	p.Publish("s1", "b", nil)
	require.NoError(t, p.Close(context.Background()))
	assert.Equal(t, int64(2), p.Dropped())
}

func TestPublishDoesNotWaitForConnection(t *testing.T) {
	fc := &fakeConn{block: make(chan struct{})}
	p := NewPublisher(fc, "", 1, quiet())

	start := time.Now()
	for i := 0; i < 10; i++ {
		p.Publish("s1", "fused_emotions", []byte(`{}`))
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, p.Dropped(), int64(8))

	close(fc.block)
	require.NoError(t, p.Close(context.Background()))
	p.Publish("s1", "late", nil)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	assert.NotContains(t, fc.subjects, "interview.s1.late")
}

func TestCloseHonorsContext(t *testing.T) {
	fc := &fakeConn{drain: make(chan struct{})}
	p := NewPublisher(fc, "", 0, quiet())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(fc.drain)
}
