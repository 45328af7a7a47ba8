package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/resilience"
)

const (
	DefaultURL     = "https://api.cartesia.ai/tts/bytes"
	APIVersion     = "2025-04-16"
	DefaultVoiceID = "9626c31c-bec5-4cca-baa8-f8ba9e84c8bc"
	DefaultModelID = "sonic-3"
)

type Config struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	Language   string
	SampleRate int
	URL        string
	SessionID  string
	HTTPClient *http.Client
}

// TTS synthesizes a whole utterance per request as raw pcm_s16le.
type TTS struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

type voice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type request struct {
	ModelID      string       `json:"model_id"`
	Transcript   string       `json:"transcript"`
	Voice        voice        `json:"voice"`
	OutputFormat outputFormat `json:"output_format"`
	Language     string       `json:"language"`
}

func New(cfg Config) *TTS {
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TTS{
		cfg:    cfg,
		client: client,
		logger: logging.NewComponentLogger(slog.Default(), "cartesia_tts").With(slog.String("session_id", cfg.SessionID)),
	}
}

func (s *TTS) Name() string { return "cartesia" }

func (s *TTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	body, err := json.Marshal(request{
		ModelID:    s.cfg.ModelID,
		Transcript: text,
		Voice:      voice{Mode: "id", ID: s.cfg.VoiceID},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: s.cfg.SampleRate,
		},
		Language: s.cfg.Language,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Cartesia-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resilience.RateLimitError{Provider: "cartesia", Message: strings.TrimSpace(string(msg))}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error("cartesia_http_error", slog.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("cartesia %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cartesia read: %w", err)
	}
	if len(audio)%2 != 0 {
		audio = audio[:len(audio)-1]
	}
	s.logger.Debug("cartesia_synthesized", slog.Int("bytes", len(audio)), slog.Int("chars", len(text)))
	return audio, nil
}

func (s *TTS) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

var _ tts.Synthesizer = (*TTS)(nil)
