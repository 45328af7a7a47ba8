package mock

import (
	"context"
	"strings"

	"github.com/harunnryd/interview/pkg/adapters/tts"
)

type TTSConfig struct {
	SampleRate int
	// MillisPerWord sets the length of the silence returned per word.
	MillisPerWord int
}

// Synthesizer returns silence sized to the text.
type Synthesizer struct {
	cfg TTSConfig
}

func NewSynthesizer(cfg TTSConfig) *Synthesizer {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.MillisPerWord <= 0 {
		cfg.MillisPerWord = 50
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) Name() string { return "mock" }

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return nil, nil
	}
	samples := s.cfg.SampleRate * s.cfg.MillisPerWord * words / 1000
	return make([]byte, samples*2), nil
}

func (s *Synthesizer) Close() error { return nil }

var _ tts.Synthesizer = (*Synthesizer)(nil)
