package stt

import (
	"context"
	"fmt"
)

// Transcript is one recognition result. TurnID identifies the utterance a
// final belongs to; providers that repeat a final for the same turn reuse the
// id.
type Transcript struct {
	Text   string
	Final  bool
	TurnID int64
}

// StreamingSTT defines the contract for any STT vendor implementation.
type StreamingSTT interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	// Connect opens the provider stream. Failures are ConnectionErrors.
	Connect(ctx context.Context) error
	// SendAudio forwards PCM16LE mono audio.
	SendAudio(pcm []byte) error
	// Results yields transcripts until the connection closes.
	Results() <-chan Transcript
	// Close shuts down the connection. Safe to call more than once.
	Close() error
}

// Config contains vendor-agnostic STT configuration.
type Config struct {
	SessionID  string
	SampleRate int
	Language   string
}

// Factory builds one connection's adapter for a session.
type Factory func(cfg Config) (StreamingSTT, error)

// ConnectionError reports a failed Connect.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connect: %v", e.Provider, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
