package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusObserver translates MetricsEvents into Prometheus collectors on
// its own registry.
type PrometheusObserver struct {
	registry *prometheus.Registry

	sessionsTotal    prometheus.Counter
	sessionsActive   prometheus.Gauge
	sessionsEnded    *prometheus.CounterVec
	stateChanges     *prometheus.CounterVec
	generationTime   *prometheus.HistogramVec
	synthesisTime    *prometheus.HistogramVec
	turnLatency      prometheus.Histogram
	rateLimited      *prometheus.CounterVec
	quotaRetries     *prometheus.CounterVec
	analyzedTotal    *prometheus.CounterVec
	malformedFrames  *prometheus.CounterVec
	observersCurrent prometheus.Gauge
}

func NewPrometheusObserver(namespace string) *PrometheusObserver {
	if namespace == "" {
		namespace = "interview"
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	latencyBuckets := []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}
	o := &PrometheusObserver{
		registry: registry,
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "started_total",
			Help: "Interview sessions that completed init",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "active",
			Help: "Interview sessions currently running",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "ended_total",
			Help: "Ended interview sessions by reason",
		}, []string{TagReason}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "state_transitions_total",
			Help: "State machine transitions by target state",
		}, []string{TagState}),
		generationTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "llm", Name: "generation_duration_seconds",
			Help: "Text generation duration", Buckets: latencyBuckets,
		}, []string{TagProvider, TagOutcome}),
		synthesisTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "tts", Name: "synthesis_duration_seconds",
			Help: "Speech synthesis duration", Buckets: latencyBuckets,
		}, []string{TagProvider, TagOutcome}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "session", Name: "turn_latency_seconds",
			Help: "Final transcript to first synthesized audio", Buckets: latencyBuckets,
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "rate_limited_total",
			Help: "Generation attempts rejected by provider quota",
		}, []string{TagProvider}),
		quotaRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "llm", Name: "quota_retries_total",
			Help: "Generation retries after a rate limit",
		}, []string{TagProvider}),
		analyzedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analysis", Name: "results_total",
			Help: "Analyzer results by modality",
		}, []string{TagModality}),
		malformedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "malformed_frames_total",
			Help: "Dropped inbound frames by kind",
		}, []string{TagKind}),
		observersCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "observers",
			Help: "Connected observer sockets",
		}),
	}
	registry.MustRegister(
		o.sessionsTotal, o.sessionsActive, o.sessionsEnded, o.stateChanges,
		o.generationTime, o.synthesisTime, o.turnLatency, o.rateLimited,
		o.quotaRetries, o.analyzedTotal, o.malformedFrames, o.observersCurrent,
	)
	return o
}

func (o *PrometheusObserver) RecordEvent(ev MetricsEvent) {
	tag := func(key string) string {
		if v := ev.Tags[key]; v != "" {
			return v
		}
		return "unknown"
	}
	switch ev.Name {
	case EventSessionStarted:
		o.sessionsTotal.Inc()
		o.sessionsActive.Inc()
	case EventSessionEnded:
		o.sessionsActive.Dec()
		o.sessionsEnded.WithLabelValues(tag(TagReason)).Inc()
	case EventStateChange:
		o.stateChanges.WithLabelValues(tag(TagState)).Inc()
	case EventGenerationDone:
		o.generationTime.WithLabelValues(tag(TagProvider), tag(TagOutcome)).Observe(ev.Value)
	case EventSynthesisDone:
		o.synthesisTime.WithLabelValues(tag(TagProvider), tag(TagOutcome)).Observe(ev.Value)
	case EventTurnLatency:
		o.turnLatency.Observe(ev.Value)
	case EventRateLimited:
		o.rateLimited.WithLabelValues(tag(TagProvider)).Inc()
	case EventQuotaRetry:
		o.quotaRetries.WithLabelValues(tag(TagProvider)).Inc()
	case EventAnalysis:
		o.analyzedTotal.WithLabelValues(tag(TagModality)).Inc()
	case EventMalformedFrame:
		o.malformedFrames.WithLabelValues(tag(TagKind)).Inc()
	case EventObserverDelta:
		o.observersCurrent.Add(ev.Value)
	}
}

// Registry exposes the underlying registry for gathering in tests.
func (o *PrometheusObserver) Registry() *prometheus.Registry { return o.registry }

// Handler serves the registry in the Prometheus exposition format.
func (o *PrometheusObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
