package llm

import "sync"

// Conversation is a session's dialogue history. A user line is appended before
// generation and rolled back when generation fails, so a failed turn leaves no
// trace in later prompts.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

func NewConversation() *Conversation {
	return &Conversation{}
}

// Begin appends a user message and returns the history to send plus a
// rollback func that removes the message again.
func (c *Conversation) Begin(userText string) ([]Message, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mark := len(c.messages)
	c.messages = append(c.messages, Message{Role: RoleUser, Content: userText})
	history := append([]Message(nil), c.messages...)
	return history, func() { c.truncate(mark) }
}

func (c *Conversation) truncate(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < len(c.messages) {
		c.messages = c.messages[:n]
	}
}

// Commit records the assistant reply of a successful turn.
func (c *Conversation) Commit(reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, Message{Role: RoleAssistant, Content: reply})
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}
