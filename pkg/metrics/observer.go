// Package metrics carries session events from the pipeline to the configured
// sinks: Prometheus, a JSONL event file, logs, or memory in tests.
package metrics

import (
	"sync"
	"time"
)

// MetricsEvent is one measurement. Value is a count, a duration in seconds or
// a delta, depending on Name.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

func NewEvent(name string, value float64, tags map[string]string) MetricsEvent {
	return MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags}
}

// Record is a nil-safe shorthand for obs.RecordEvent(NewEvent(...)).
func Record(obs Observer, name string, value float64, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(NewEvent(name, value, tags))
}

// MemoryObserver keeps every event in arrival order.
type MemoryObserver struct {
	mu     sync.Mutex
	events []MetricsEvent
}

func NewMemoryObserver() *MemoryObserver {
	return &MemoryObserver{}
}

func (m *MemoryObserver) RecordEvent(ev MetricsEvent) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
}

// Named returns a copy of the events with the given name.
func (m *MemoryObserver) Named(name string) []MetricsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MetricsEvent
	for _, ev := range m.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (m *MemoryObserver) Count(name string) int {
	return len(m.Named(name))
}

// Tagged counts events with the given name whose tag k equals v.
func (m *MemoryObserver) Tagged(name, k, v string) int {
	n := 0
	for _, ev := range m.Named(name) {
		if ev.Tags[k] == v {
			n++
		}
	}
	return n
}
