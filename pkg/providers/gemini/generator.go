package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harunnryd/interview/pkg/llm"
	"github.com/harunnryd/interview/pkg/resilience"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash-lite"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator calls the Gemini API once per Generate. Retries on quota errors
// belong to the caller's quota gate.
type Generator struct {
	model  string
	models contentGenerator
}

func New(ctx context.Context, apiKey, model string) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: missing api key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newWithModels(client.Models, model), nil
}

func newWithModels(models contentGenerator, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{model: model, models: models}
}

func (g *Generator) Name() string { return "gemini" }

func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	var config *genai.GenerateContentConfig
	if strings.TrimSpace(systemPrompt) != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}
	resp, err := g.models.GenerateContent(ctx, g.model, toContents(history), config)
	if err != nil {
		return "", mapError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

func toContents(history []llm.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}

func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "gemini", Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests {
		return resilience.RateLimitError{Provider: "gemini", Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generate: %w", err)
}

var _ llm.Generator = (*Generator)(nil)
