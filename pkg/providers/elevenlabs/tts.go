package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/interview/pkg/adapters/tts"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/resilience"
)

const defaultBaseURL = "wss://api.elevenlabs.io/v1/text-to-speech/"

type Config struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	SampleRate int
	BaseURL    string
	SessionID  string
}

// ElevenLabsTTS opens one stream-input socket per utterance and collects the
// returned PCM until the final message.
type ElevenLabsTTS struct {
	cfg    Config
	logger *slog.Logger
}

type streamMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func New(cfg Config) *ElevenLabsTTS {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &ElevenLabsTTS{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "elevenlabs_tts").With(slog.String("session_id", cfg.SessionID)),
	}
}

func (s *ElevenLabsTTS) Name() string { return "elevenlabs" }

func (s *ElevenLabsTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if s.cfg.APIKey == "" || s.cfg.VoiceID == "" {
		return nil, errors.New("missing elevenlabs config")
	}
	u := s.buildURL()

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u, http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("elevenlabs_rate_limited", slog.String("status", resp.Status))
			return nil, resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status}
		}
		return nil, fmt.Errorf("elevenlabs dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, payload := range []map[string]any{
		{
			"text": " ",
			"voice_settings": map[string]any{
				"stability":        0.5,
				"similarity_boost": 0.8,
			},
			"generation_config": map[string]any{
				"chunk_length_schedule": []int{120, 160, 250, 290},
			},
		},
		{"text": text + " ", "try_trigger_generation": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(payload); err != nil {
			return nil, fmt.Errorf("elevenlabs send: %w", err)
		}
	}

	var audio []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, fmt.Errorf("elevenlabs read: %w", err)
		}
		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("elevenlabs_bad_message", slog.String("error", err.Error()))
			continue
		}
		if msg.Error != "" {
			return nil, fmt.Errorf("elevenlabs: %s: %s", msg.Error, msg.Message)
		}
		if msg.Audio != "" {
			raw, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				s.logger.Error("elevenlabs_audio_decode_error", slog.String("error", err.Error()))
				continue
			}
			audio = append(audio, raw...)
		}
		if msg.IsFinal {
			break
		}
	}
	if len(audio)%2 != 0 {
		audio = audio[:len(audio)-1]
	}
	s.logger.Debug("elevenlabs_synthesized", slog.Int("bytes", len(audio)))
	return audio, nil
}

func (s *ElevenLabsTTS) Close() error { return nil }

func (s *ElevenLabsTTS) buildURL() string {
	q := url.Values{}
	if s.cfg.ModelID != "" {
		q.Set("model_id", s.cfg.ModelID)
	}
	q.Set("output_format", "pcm_"+strconv.Itoa(s.cfg.SampleRate))
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/" + s.cfg.VoiceID + "/stream-input?" + q.Encode()
}

var _ tts.Synthesizer = (*ElevenLabsTTS)(nil)
