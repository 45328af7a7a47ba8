package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/logging"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

const providerName = "deepgram"

type Config struct {
	APIKey         string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Interim        bool
	UtteranceEndMS int
	SessionID      string
}

// StreamingSTT streams PCM to Deepgram and assembles is_final segments into
// one final transcript per utterance.
type StreamingSTT struct {
	cfg        Config
	dgClient   *client.WSCallback
	ctx        context.Context
	cancel     context.CancelFunc
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	logger     *slog.Logger

	mu        sync.Mutex
	out       chan stt.Transcript
	closed    bool
	assembler assembler
}

func New(cfg Config) *StreamingSTT {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	logger := logging.NewComponentLogger(slog.Default(), "deepgram_stt").With(slog.String("session_id", cfg.SessionID))
	return &StreamingSTT{
		cfg:    cfg,
		out:    make(chan stt.Transcript, 256),
		logger: logger,
	}
}

func (s *StreamingSTT) Name() string { return providerName }

func (s *StreamingSTT) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return &stt.ConnectionError{Provider: providerName, Err: errors.New("missing api key")}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.pipeReader, s.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          s.cfg.Model,
		Language:       s.cfg.Language,
		Encoding:       s.cfg.Encoding,
		SampleRate:     s.cfg.SampleRate,
		Channels:       1,
		InterimResults: s.cfg.Interim,
		VadEvents:      true,
		SmartFormat:    true,
		Punctuate:      true,
	}
	if s.cfg.UtteranceEndMS > 0 {
		transcriptOptions.UtteranceEndMs = fmt.Sprintf("%d", s.cfg.UtteranceEndMS)
	}

	s.logger.Info("initializing deepgram connection",
		slog.String("model", s.cfg.Model),
		slog.Int("sample_rate", s.cfg.SampleRate))

	dgClient, err := client.NewWSUsingCallback(s.ctx, s.cfg.APIKey, clientOptions, transcriptOptions, &callback{parent: s})
	if err != nil {
		s.logger.Error("deepgram_client_create_error", slog.String("error", err.Error()))
		return &stt.ConnectionError{Provider: providerName, Err: err}
	}
	s.dgClient = dgClient

	connected := make(chan bool, 1)
	go func() { connected <- s.dgClient.Connect() }()
	select {
	case ok := <-connected:
		if !ok {
			s.logger.Error("deepgram_connect_failed")
			return &stt.ConnectionError{Provider: providerName, Err: errors.New("connection failed")}
		}
	case <-ctx.Done():
		s.cancel()
		return &stt.ConnectionError{Provider: providerName, Err: ctx.Err()}
	}

	s.logger.Info("deepgram_connected", slog.String("model", s.cfg.Model))

	go func() {
		if err := s.dgClient.Stream(s.pipeReader); err != nil && s.ctx.Err() == nil {
			s.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *StreamingSTT) SendAudio(pcm []byte) error {
	if s.pipeWriter == nil {
		return errors.New("deepgram: not connected")
	}
	_, err := s.pipeWriter.Write(pcm)
	return err
}

func (s *StreamingSTT) Results() <-chan stt.Transcript { return s.out }

func (s *StreamingSTT) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.out)
	s.mu.Unlock()

	s.logger.Info("closing deepgram connection")
	if s.pipeWriter != nil {
		_ = s.pipeWriter.Close()
	}
	if s.dgClient != nil {
		s.dgClient.Stop()
	}
	return nil
}

// emit drops partials when the consumer lags; finals are never dropped
// while the connection is open.
func (s *StreamingSTT) emit(t stt.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !t.Final {
		select {
		case s.out <- t:
		default:
			s.logger.Warn("deepgram_out_channel_full")
		}
		return
	}
	select {
	case s.out <- t:
	case <-s.ctx.Done():
	}
}

func (s *StreamingSTT) handleResult(text string, isFinal, speechFinal bool) {
	s.mu.Lock()
	partial, final, ok := s.assembler.add(text, isFinal, speechFinal)
	s.mu.Unlock()
	if ok {
		s.emit(final)
		return
	}
	if partial != "" {
		s.emit(stt.Transcript{Text: partial})
	}
}

func (s *StreamingSTT) handleUtteranceEnd() {
	s.mu.Lock()
	final, ok := s.assembler.flush()
	s.mu.Unlock()
	if ok {
		s.emit(final)
	}
}

// assembler joins is_final segments until Deepgram marks the end of speech.
type assembler struct {
	segments []string
	turn     int64
}

func (a *assembler) add(text string, isFinal, speechFinal bool) (string, stt.Transcript, bool) {
	text = strings.TrimSpace(text)
	if !isFinal {
		if text == "" {
			return "", stt.Transcript{}, false
		}
		return strings.Join(append(append([]string(nil), a.segments...), text), " "), stt.Transcript{}, false
	}
	if text != "" {
		a.segments = append(a.segments, text)
	}
	if speechFinal {
		final, ok := a.flush()
		return "", final, ok
	}
	return "", stt.Transcript{}, false
}

func (a *assembler) flush() (stt.Transcript, bool) {
	if len(a.segments) == 0 {
		return stt.Transcript{}, false
	}
	text := strings.Join(a.segments, " ")
	a.segments = a.segments[:0]
	a.turn++
	return stt.Transcript{Text: text, Final: true, TurnID: a.turn}, true
}

type callback struct {
	parent *StreamingSTT
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	c.parent.handleResult(mr.Channel.Alternatives[0].Transcript, mr.IsFinal, mr.SpeechFinal)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata_received", slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance_end_event")
	c.parent.handleUtteranceEnd()
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event", slog.Int("size_bytes", len(byData)))
	return nil
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
