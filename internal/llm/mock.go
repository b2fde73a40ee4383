package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockResponse configures a single reply from the mock completer.
type MockResponse struct {
	Content string
	Error   error
}

// MockCompleter is a scripted Completer for tests.
type MockCompleter struct {
	mu        sync.Mutex
	responses []MockResponse
	callIndex int
	calls     [][]Message
}

// NewMockCompleter creates a mock with a sequence of replies.
// Replies are returned in order; if exhausted, the last reply repeats.
func NewMockCompleter(responses ...MockResponse) *MockCompleter {
	return &MockCompleter{responses: responses}
}

// Provider returns the provider identifier.
func (m *MockCompleter) Provider() string { return string(ProviderMock) }

// Complete records the conversation and returns the next configured reply.
func (m *MockCompleter) Complete(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]Message(nil), messages...))

	if len(m.responses) == 0 {
		return "", fmt.Errorf("mock: no responses configured")
	}

	idx := m.callIndex
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	} else {
		m.callIndex++
	}

	resp := m.responses[idx]
	if resp.Error != nil {
		return "", resp.Error
	}
	return resp.Content, nil
}

// Calls returns every conversation sent to the mock, in order.
func (m *MockCompleter) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}

// Reset clears call history and resets the reply index.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callIndex = 0
	m.calls = nil
}
