// Package runner drives the process lifecycle: start hooks, blocking until the
// context ends, then a bounded drain of live interviews.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run around the serving phase. A non-nil error from OnStart aborts Run
// before the runner reaches StateRunning.
type Hooks struct {
	OnStart func(ctx context.Context) error
	OnStop  func()
}

// Drainer is implemented by the HTTP server: refuse new sessions, let the
// running ones finish, then close.
type Drainer interface {
	Drain() error
}

// Version is overridden at build time with -ldflags.
var Version = "dev"

// BannerOutput is where PrintBanner writes. Nil disables the banner.
var BannerOutput io.Writer = os.Stdout

func PrintBanner() {
	if BannerOutput == nil {
		return
	}
	tpl := "{{ .Title \"INTERVIEW\" \"\" 0 }}\nVersion: " + Version + "\n"
	banner.Init(BannerOutput, true, true, bytes.NewBufferString(tpl))
}
