package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harunnryd/interview/pkg/logging"
)

var (
	ErrInvalidState = errors.New("runner: invalid state transition")
	ErrDrainTimeout = errors.New("runner: drain timeout")
)

type LifecycleRunner struct {
	state    int32
	mu       sync.Mutex
	cancel   context.CancelFunc
	onceStop sync.Once
	hooks    Hooks
	drainer  Drainer
	stopErr  error
	timeout  time.Duration
	log      *slog.Logger
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration, logger *slog.Logger) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleRunner{
		state:   int32(StateNew),
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
		log:     logging.NewComponentLogger(logger, "runner"),
	}
}

// Run blocks until ctx is done or Stop is called, then drains.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return ErrInvalidState
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer cancel()

	PrintBanner()
	if r.hooks.OnStart != nil {
		if err := r.hooks.OnStart(ctx); err != nil {
			r.setState(StateStopped)
			return fmt.Errorf("runner start: %w", err)
		}
	}
	r.setState(StateRunning)
	r.log.Info("runner_running", "version", Version)
	<-ctx.Done()
	return r.stop()
}

func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		r.log.Info("runner_draining", "timeout_ms", r.timeout.Milliseconds())
		if r.drainer != nil {
			done := make(chan error, 1)
			go func() {
				done <- r.drainer.Drain()
			}()
			select {
			case err := <-done:
				if err != nil {
					r.log.Warn("runner_drain_failed", "error", err)
				}
			case <-time.After(r.timeout):
				r.stopErr = ErrDrainTimeout
				r.log.Warn("runner_drain_timeout")
			}
		}
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.setState(StateStopped)
		r.log.Info("runner_stopped")
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
