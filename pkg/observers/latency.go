package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/interview/pkg/metrics"
)

// LatencyObserver measures each turn from the user's final transcript to the
// first synthesized audio chunk sent back, and forwards the result to next as
// a turn_latency event.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
	next   metrics.Observer
}

type trace struct {
	final      time.Time
	generated  time.Time
	firstAudio time.Time
}

func NewLatencyObserver(log *slog.Logger, next metrics.Observer) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
		next:   next,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	sessionID := ev.Tags[metrics.TagSession]
	if sessionID == "" {
		return
	}

	o.mu.Lock()
	var done *trace
	switch ev.Name {
	case metrics.EventTranscriptFinal:
		o.traces[sessionID] = &trace{final: ev.Time}
	case metrics.EventGenerationDone:
		if t := o.traces[sessionID]; t != nil && t.generated.IsZero() {
			t.generated = ev.Time
		}
	case metrics.EventFirstAudio:
		if t := o.traces[sessionID]; t != nil {
			t.firstAudio = ev.Time
			done = t
			delete(o.traces, sessionID)
		}
	case metrics.EventSessionEnded:
		delete(o.traces, sessionID)
	}
	o.mu.Unlock()

	if done == nil {
		return
	}
	total := done.firstAudio.Sub(done.final)
	o.log.Info("turn_latency",
		"session_id", sessionID,
		"generate_ms", durationMs(done.final, done.generated),
		"synthesize_ms", durationMs(done.generated, done.firstAudio),
		"total_ms", total.Milliseconds(),
	)
	metrics.Record(o.next, metrics.EventTurnLatency, total.Seconds(), map[string]string{
		metrics.TagSession: sessionID,
	})
}

// Pending returns the number of turns still awaiting audio.
func (o *LatencyObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.traces)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
