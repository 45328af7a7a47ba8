package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/interview/pkg/llm"
	"github.com/harunnryd/interview/pkg/resilience"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

// Adapter calls an OpenAI-compatible chat completions endpoint. The defaults
// point at Groq.
type Adapter struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func NewAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{
		APIKey:      apiKey,
		Model:       model,
		BaseURL:     DefaultBaseURL,
		Temperature: 0.7,
		MaxTokens:   1024,
		Client:      &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Generate(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	body, err := a.buildRequest(systemPrompt, history)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		return "", err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", resilience.RateLimitError{Provider: "openai", Message: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("openai %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}

func (a *Adapter) buildRequest(systemPrompt string, history []llm.Message) (*bytes.Buffer, error) {
	req := chatRequest{
		Model:       a.Model,
		Messages:    normalizeMessages(systemPrompt, history),
		Temperature: a.Temperature,
		MaxTokens:   a.MaxTokens,
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return bytes.NewBuffer(b), nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

// normalizeMessages puts the system prompt first and drops empty turns.
func normalizeMessages(systemPrompt string, history []llm.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

var _ llm.Generator = (*Adapter)(nil)
