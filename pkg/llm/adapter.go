package llm

import "context"

// Message roles in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Generator produces the interviewer's next line. Implementations return a
// resilience.RateLimitError when the provider rejects a call for quota, and
// honor ctx for timeouts.
type Generator interface {
	Name() string
	Generate(ctx context.Context, systemPrompt string, history []Message) (string, error)
}
