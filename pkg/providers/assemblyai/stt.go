package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/interview/pkg/adapters/stt"
	"github.com/harunnryd/interview/pkg/logging"
	"github.com/harunnryd/interview/pkg/redact"
)

const (
	providerName    = "assemblyai"
	defaultTokenURL = "https://streaming.assemblyai.com/v3/token"
	defaultWSURL    = "wss://streaming.assemblyai.com/v3/ws"
	tokenExpirySecs = 480
)

type Config struct {
	APIKey     string
	SampleRate int
	SessionID  string
	TokenURL   string
	WSURL      string
	HTTPClient *http.Client
}

// StreamingSTT speaks the v3 universal streaming protocol: raw PCM binary
// frames up, JSON Turn messages down.
type StreamingSTT struct {
	cfg    Config
	logger *slog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu     sync.Mutex
	out    chan stt.Transcript
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

type message struct {
	Type                 string  `json:"type"`
	ID                   string  `json:"id"`
	Transcript           string  `json:"transcript"`
	EndOfTurn            bool    `json:"end_of_turn"`
	TurnOrder            int64   `json:"turn_order"`
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`
	Error                string  `json:"error"`
}

func New(cfg Config) *StreamingSTT {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = defaultWSURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := logging.NewComponentLogger(slog.Default(), "assemblyai_stt").With(slog.String("session_id", cfg.SessionID))
	return &StreamingSTT{
		cfg:    cfg,
		logger: logger,
		out:    make(chan stt.Transcript, 256),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (s *StreamingSTT) Name() string { return providerName }

func (s *StreamingSTT) Connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	token, err := s.fetchToken(ctx)
	if err != nil {
		s.logger.Error("assemblyai_token_failed", slog.String("error", err.Error()))
		return &stt.ConnectionError{Provider: providerName, Err: err}
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("sample_rate", strconv.Itoa(s.cfg.SampleRate))
	q.Set("format_turns", "true")

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, s.cfg.WSURL+"?"+q.Encode(), nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %s)", err, resp.Status)
		}
		s.logger.Error("assemblyai_connect_failed", slog.String("error", err.Error()))
		return &stt.ConnectionError{Provider: providerName, Err: err}
	}
	s.conn = conn
	s.logger.Info("assemblyai_connected", slog.Int("sample_rate", s.cfg.SampleRate))

	go s.readLoop()
	return nil
}

func (s *StreamingSTT) fetchToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return "", errors.New("missing api key")
	}
	u := s.cfg.TokenURL + "?expires_in_seconds=" + strconv.Itoa(tokenExpirySecs)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", s.cfg.APIKey)
	resp, err := s.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token request %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("token decode: %w", err)
	}
	if payload.Token == "" {
		return "", errors.New("token response carried no token")
	}
	return payload.Token, nil
}

func (s *StreamingSTT) SendAudio(pcm []byte) error {
	if s.conn == nil {
		return errors.New("assemblyai: not connected")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

func (s *StreamingSTT) Results() <-chan stt.Transcript { return s.out }

// Close sends Terminate and closes the socket. The results channel closes
// once the read loop exits.
func (s *StreamingSTT) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.stop)
	s.mu.Unlock()

	if s.conn == nil {
		close(s.out)
		return nil
	}
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	err := s.conn.Close()
	s.logger.Info("assemblyai_closed")
	return err
}

func (s *StreamingSTT) readLoop() {
	defer func() {
		close(s.out)
		close(s.done)
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.logger.Debug("assemblyai_read_loop_exit", slog.String("error", err.Error()))
			}
			return
		}
		if !s.handleMessage(data) {
			return
		}
	}
}

// handleMessage reports false when the provider terminated the session.
func (s *StreamingSTT) handleMessage(data []byte) bool {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("assemblyai_bad_message", slog.String("error", err.Error()))
		return true
	}
	switch msg.Type {
	case "Turn":
		if msg.Transcript == "" {
			return true
		}
		if msg.EndOfTurn {
			s.logger.Debug("assemblyai_final_turn",
				slog.Int64("turn_order", msg.TurnOrder),
				slog.String("transcript", redact.Text(msg.Transcript)))
		}
		s.deliver(stt.Transcript{Text: msg.Transcript, Final: msg.EndOfTurn, TurnID: msg.TurnOrder}, msg.EndOfTurn)
	case "Begin":
		s.logger.Info("assemblyai_session_started", slog.String("provider_session", msg.ID))
	case "Termination":
		s.logger.Info("assemblyai_session_terminated", slog.Float64("audio_duration_seconds", msg.AudioDurationSeconds))
		return false
	case "Error":
		s.logger.Error("assemblyai_error", slog.String("error", msg.Error))
	}
	return true
}

func (s *StreamingSTT) deliver(t stt.Transcript, final bool) {
	if final {
		select {
		case s.out <- t:
		case <-s.stop:
		}
		return
	}
	select {
	case s.out <- t:
	default:
		s.logger.Warn("assemblyai_out_channel_full")
	}
}

var _ stt.StreamingSTT = (*StreamingSTT)(nil)
