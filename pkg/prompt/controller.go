// Package prompt turns the latest fused emotion estimate into the interviewer's
// system instructions.
package prompt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/harunnryd/interview/pkg/emotion"
)

// State is a consistent view of what the interviewer currently believes.
type State struct {
	Topic     string
	Fused     emotion.Estimate
	Decision  emotion.Decision
	Rationale string
	Prompt    string
	Version   uint64
}

// Controller holds the current fused estimate for one session and regenerates
// the system prompt on every update. Callers must read it right before each
// generation call.
type Controller struct {
	mu    sync.RWMutex
	state State
}

func NewController(topic string) *Controller {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = "General"
	}
	c := &Controller{}
	c.state = build(topic, emotion.Neutral, 0)
	return c
}

// Update replaces the fused estimate and returns the regenerated state.
func (c *Controller) Update(fused emotion.Estimate) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = build(c.state.Topic, fused, c.state.Version+1)
	return c.state
}

// Current returns the latest state.
func (c *Controller) Current() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SystemPrompt returns the latest instruction text.
func (c *Controller) SystemPrompt() string {
	return c.Current().Prompt
}

// OpeningPrompt is the user-turn instruction that asks for the first question.
func (c *Controller) OpeningPrompt() string {
	return fmt.Sprintf("Briefly introduce yourself in one sentence, then ask your first question about %s. "+
		"Keep it to 2 sentences total.", c.Current().Topic)
}

func build(topic string, fused emotion.Estimate, version uint64) State {
	decision := emotion.Decide(fused)
	rationale := Rationale(decision)
	return State{
		Topic:     topic,
		Fused:     fused,
		Decision:  decision,
		Rationale: rationale,
		Prompt:    Render(topic, fused, decision, rationale),
		Version:   version,
	}
}
