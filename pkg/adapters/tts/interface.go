package tts

import "context"

// Synthesizer turns text into PCM16LE mono audio at the configured rate.
// An empty text yields no audio and no error.
type Synthesizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close() error
}

// Config contains vendor-agnostic TTS configuration.
type Config struct {
	SessionID  string
	SampleRate int
}

// Factory builds a session's synthesizer.
type Factory func(cfg Config) (Synthesizer, error)
