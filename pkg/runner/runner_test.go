package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func init() {
	BannerOutput = nil
}

type fakeDrainer struct {
	calls atomic.Int32
	delay time.Duration
}

func (d *fakeDrainer) Drain() error {
	d.calls.Add(1)
	time.Sleep(d.delay)
	return nil
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDrainsOnCancel(t *testing.T) {
	d := &fakeDrainer{}
	started := make(chan struct{})
	stopped := false
	r := NewLifecycleRunner(d, Hooks{
		OnStart: func(context.Context) error { close(started); return nil },
		OnStop:  func() { stopped = true },
	}, time.Second, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	<-started
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if d.calls.Load() != 1 {
		t.Fatalf("expected one drain, got %d", d.calls.Load())
	}
	if !stopped {
		t.Fatalf("OnStop not called")
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", r.State())
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if d.calls.Load() != 1 {
		t.Fatalf("drain ran twice")
	}
}

func TestStopReportsDrainTimeout(t *testing.T) {
	d := &fakeDrainer{delay: 200 * time.Millisecond}
	r := NewLifecycleRunner(d, Hooks{}, 20*time.Millisecond, quiet())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for r.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatalf("runner never reached running")
		}
		time.Sleep(time.Millisecond)
	}
	if err := r.Stop(); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout, got %v", err)
	}
	if err := <-errCh; !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("expected drain timeout from Run, got %v", err)
	}
}

func TestStartErrorAbortsRun(t *testing.T) {
	boom := errors.New("listen failed")
	r := NewLifecycleRunner(nil, Hooks{
		OnStart: func(context.Context) error { return boom },
	}, time.Second, quiet())
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected start error, got %v", err)
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state on rerun, got %v", err)
	}
}
