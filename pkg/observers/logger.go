package observers

import (
	"context"
	"log/slog"
	"sort"

	"github.com/harunnryd/interview/pkg/metrics"
)

// noisy events fire per media chunk or per state change and are logged at
// debug; the rest are logged at info.
var noisy = map[string]bool{
	metrics.EventAnalysis:       true,
	metrics.EventStateChange:    true,
	metrics.EventObserverDelta:  true,
	metrics.EventMalformedFrame: true,
}

// LoggerObserver writes every event as one log line named after the event,
// session first and the remaining tags in key order.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	level := slog.LevelInfo
	if noisy[ev.Name] {
		level = slog.LevelDebug
	}
	if !o.log.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, 0, len(ev.Tags)+len(ev.Fields)+1)
	if id := ev.Tags[metrics.TagSession]; id != "" {
		attrs = append(attrs, slog.String(metrics.TagSession, id))
	}
	keys := make([]string, 0, len(ev.Tags))
	for k := range ev.Tags {
		if k != metrics.TagSession {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, ev.Tags[k]))
	}
	attrs = append(attrs, slog.Float64("value", ev.Value))
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), level, ev.Name, attrs...)
}

// MultiObserver fans one event out to several observers in order.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	kept := make([]metrics.Observer, 0, len(list))
	for _, obs := range list {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return &MultiObserver{list: kept}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		obs.RecordEvent(ev)
	}
}
