package loop

import "github.com/szaher/infraagent/internal/llm"

// Conversation is the ordered message history of one request. It only grows;
// each request owns its own instance.
type Conversation struct {
	messages []llm.Message
}

// NewConversation seeds a conversation with the instructions and the
// user's question.
func NewConversation(instructions, question string) *Conversation {
	return &Conversation{messages: []llm.Message{
		{Role: llm.RoleSystem, Content: instructions},
		{Role: llm.RoleUser, Content: "Question: " + question},
	}}
}

// Append adds messages in order.
func (c *Conversation) Append(msgs ...llm.Message) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }
