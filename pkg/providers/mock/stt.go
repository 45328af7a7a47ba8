package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/harunnryd/interview/pkg/adapters/stt"
)

type STTConfig struct {
	// Transcripts are cycled; each turn emits one partial and one final.
	Transcripts []string
	// ChunksPerTurn is how many audio chunks make up one utterance.
	ChunksPerTurn int
	ConnectErr    error
}

// StreamingSTT turns every ChunksPerTurn audio chunks into a scripted
// utterance.
type StreamingSTT struct {
	cfg STTConfig

	mu        sync.Mutex
	out       chan stt.Transcript
	connected bool
	closed    bool
	chunks    int
	turn      int64
}

func NewSTT(cfg STTConfig) *StreamingSTT {
	if len(cfg.Transcripts) == 0 {
		cfg.Transcripts = []string{"mock transcript"}
	}
	if cfg.ChunksPerTurn <= 0 {
		cfg.ChunksPerTurn = 50
	}
	return &StreamingSTT{cfg: cfg, out: make(chan stt.Transcript, 16)}
}

func (s *StreamingSTT) Name() string { return "mock" }

func (s *StreamingSTT) Connect(ctx context.Context) error {
	if s.cfg.ConnectErr != nil {
		return &stt.ConnectionError{Provider: "mock", Err: s.cfg.ConnectErr}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *StreamingSTT) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.closed {
		return errors.New("not connected")
	}
	s.chunks++
	text := s.cfg.Transcripts[int(s.turn)%len(s.cfg.Transcripts)]
	switch {
	case s.chunks == s.cfg.ChunksPerTurn/2:
		s.push(stt.Transcript{Text: text})
	case s.chunks >= s.cfg.ChunksPerTurn:
		s.chunks = 0
		s.turn++
		s.push(stt.Transcript{Text: text, Final: true, TurnID: s.turn})
	}
	return nil
}

func (s *StreamingSTT) push(t stt.Transcript) {
	select {
	case s.out <- t:
	default:
	}
}

func (s *StreamingSTT) Results() <-chan stt.Transcript { return s.out }

func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.out)
	return nil
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
