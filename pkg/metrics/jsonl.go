package metrics

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// JSONLObserver writes one JSON object per event, for offline inspection of a
// run's event stream.
type JSONLObserver struct {
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		return &JSONLObserver{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	}
	o := &JSONLObserver{logger: slog.New(slog.NewJSONHandler(w, nil))}
	if c, ok := w.(io.Closer); ok {
		o.closer = c
	}
	return o
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "event", attrs...)
}

// Close closes the underlying writer when it is closable.
func (o *JSONLObserver) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}
