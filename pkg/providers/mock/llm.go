package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/interview/pkg/llm"
)

type LLMConfig struct {
	// Responses are cycled across calls.
	Responses []string
}

type Generator struct {
	cfg LLMConfig

	mu    sync.Mutex
	calls int
}

func NewGenerator(cfg LLMConfig) *Generator {
	if len(cfg.Responses) == 0 {
		cfg.Responses = []string{
			"Hi, I'm your interviewer today. Could you start by walking me through a recent project?",
			"That's helpful. What was the hardest technical decision you made there?",
			"How did you measure whether it worked?",
		}
	}
	return &Generator{cfg: cfg}
}

func (g *Generator) Name() string { return "mock" }

func (g *Generator) Generate(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	resp := g.cfg.Responses[g.calls%len(g.cfg.Responses)]
	g.calls++
	return resp, nil
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

var _ llm.Generator = (*Generator)(nil)
