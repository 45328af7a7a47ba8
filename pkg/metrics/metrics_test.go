package metrics

import (
	"bytes"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncObserverDeliversAndCloses(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 16)
	for i := 0; i < 10; i++ {
		async.RecordEvent(NewEvent(EventAnalysis, 1, nil))
	}
	async.Close()
	async.Close()
	async.RecordEvent(NewEvent(EventAnalysis, 1, nil))

	assert.Equal(t, 10, mem.Count(EventAnalysis))
	assert.Zero(t, async.Dropped())
}

type blockingObserver struct {
	release chan struct{}
	once    sync.Once
	started chan struct{}
}

func (b *blockingObserver) RecordEvent(MetricsEvent) {
	b.once.Do(func() { close(b.started) })
	<-b.release
}

func TestAsyncObserverDropsWhenFull(t *testing.T) {
	inner := &blockingObserver{release: make(chan struct{}), started: make(chan struct{})}
	async := NewAsyncObserver(inner, 1)
	async.RecordEvent(NewEvent("a", 0, nil))
	<-inner.started
	async.RecordEvent(NewEvent("b", 0, nil))
	async.RecordEvent(NewEvent("c", 0, nil))
	close(inner.release)
	async.Close()

	assert.Equal(t, int64(1), async.Dropped())
}

func TestRecordNilObserver(t *testing.T) {
	Record(nil, EventAnalysis, 1, nil)
}

func TestPrometheusObserverCounts(t *testing.T) {
	obs := NewPrometheusObserver("test")
	obs.RecordEvent(NewEvent(EventSessionStarted, 0, nil))
	obs.RecordEvent(NewEvent(EventSessionStarted, 0, nil))
	obs.RecordEvent(NewEvent(EventSessionEnded, 0, map[string]string{TagReason: "disconnect"}))
	obs.RecordEvent(NewEvent(EventAnalysis, 0, map[string]string{TagModality: "face"}))
	obs.RecordEvent(NewEvent(EventGenerationDone, 1.5, map[string]string{TagProvider: "mock", TagOutcome: OutcomeOK}))
	obs.RecordEvent(NewEvent(EventObserverDelta, 1, nil))
	obs.RecordEvent(NewEvent(EventObserverDelta, 1, nil))
	obs.RecordEvent(NewEvent(EventObserverDelta, -1, nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(obs.sessionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(obs.sessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(obs.sessionsEnded.WithLabelValues("disconnect")))
	assert.Equal(t, float64(1), testutil.ToFloat64(obs.analyzedTotal.WithLabelValues("face")))
	assert.Equal(t, float64(1), testutil.ToFloat64(obs.observersCurrent))

	families, err := obs.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "test_llm_generation_duration_seconds" {
			found = true
		}
	}
	assert.True(t, found, "generation histogram should be registered")
}

func TestPrometheusHandlerServesMetrics(t *testing.T) {
	obs := NewPrometheusObserver("")
	obs.RecordEvent(NewEvent(EventMalformedFrame, 0, map[string]string{TagKind: "binary"}))

	rec := httptest.NewRecorder()
	obs.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "interview_transport_malformed_frames_total"))
}

func TestJSONLObserverWritesLine(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLObserver(&buf)
	obs.RecordEvent(NewEvent(EventTurnLatency, 0.42, map[string]string{TagSession: "s1"}))

	line := buf.String()
	assert.Contains(t, line, `"name":"turn_latency"`)
	assert.Contains(t, line, `"session_id":"s1"`)
	require.NoError(t, obs.Close())
}
