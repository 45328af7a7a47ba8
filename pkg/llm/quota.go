package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/harunnryd/interview/pkg/metrics"
	"github.com/harunnryd/interview/pkg/resilience"
)

// QuotaGate serializes generation calls across every session in the process
// and retries rate-limited calls with escalating delays while holding the
// gate. A circuit breaker fails turns fast after repeated exhausted retries.
type QuotaGate struct {
	sem            chan struct{}
	retry          RetryConfig
	attemptTimeout time.Duration
	gateWait       time.Duration
	breaker        *resilience.CircuitBreaker
	obs            metrics.Observer
	log            *slog.Logger
}

type QuotaConfig struct {
	MaxAttempts int
	Delays      []time.Duration

	// AttemptTimeout bounds each provider call.
	AttemptTimeout time.Duration
	// GateWait bounds the wait for another session's call, backoff
	// included, to finish. Zero waits as long as ctx allows.
	GateWait time.Duration

	CircuitThreshold int
	CircuitCooldown  time.Duration
	Sleep            func(ctx context.Context, d time.Duration) error
	Observer         metrics.Observer
	Logger           *slog.Logger
}

func NewQuotaGate(cfg QuotaConfig) *QuotaGate {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.Observer == nil {
		cfg.Observer = metrics.NoopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &QuotaGate{
		sem: make(chan struct{}, 1),
		retry: RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			Delays:      cfg.Delays,
			Sleep:       cfg.Sleep,
		},
		attemptTimeout: cfg.AttemptTimeout,
		gateWait:       cfg.GateWait,
		breaker:        resilience.NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitCooldown),
		obs:            cfg.Observer,
		log:            cfg.Logger,
	}
}

// Generate runs gen under the process-wide gate. Waiting for the gate and
// backoff sleeps end early when ctx is cancelled.
func (g *QuotaGate) Generate(ctx context.Context, gen Generator, systemPrompt string, history []Message) (string, error) {
	provider := gen.Name()
	if !g.breaker.Allow() {
		metrics.Record(g.obs, metrics.EventRateLimited, 0, map[string]string{metrics.TagProvider: provider})
		return "", resilience.RateLimitError{
			Provider: provider,
			Message:  "quota circuit open, retry after " + g.breaker.RetryAfter().Round(time.Second).String(),
		}
	}

	if err := g.acquire(ctx, provider); err != nil {
		return "", err
	}
	defer func() { <-g.sem }()

	cfg := g.retry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.Record(g.obs, metrics.EventRateLimited, 0, map[string]string{metrics.TagProvider: provider})
		metrics.Record(g.obs, metrics.EventQuotaRetry, float64(attempt), map[string]string{metrics.TagProvider: provider})
		g.log.Warn("generation_rate_limited",
			"provider", provider,
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"retry_in", delay.String(),
			"error", err,
		)
	}
	out, err := Retry(ctx, cfg, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
		return gen.Generate(attemptCtx, systemPrompt, history)
	})
	if err != nil {
		if resilience.IsRateLimit(err) {
			metrics.Record(g.obs, metrics.EventRateLimited, 0, map[string]string{metrics.TagProvider: provider})
		}
		g.breaker.OnError(err)
		return "", err
	}
	g.breaker.OnSuccess()
	return out, nil
}

func (g *QuotaGate) acquire(ctx context.Context, provider string) error {
	var expired <-chan time.Time
	if g.gateWait > 0 {
		timer := time.NewTimer(g.gateWait)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		metrics.Record(g.obs, metrics.EventRateLimited, 0, map[string]string{metrics.TagProvider: provider})
		g.log.Warn("generation_gate_busy", "provider", provider, "waited", g.gateWait.String())
		return resilience.RateLimitError{
			Provider: provider,
			Message:  "another generation is still retrying, waited " + g.gateWait.String(),
		}
	}
}
