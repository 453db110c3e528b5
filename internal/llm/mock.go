package llm

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted Client for tests. Responses are consumed in order;
// when the script runs out the last response repeats. A nil script with no
// error yields a fixed placeholder reply.
type Mock struct {
	mu        sync.Mutex
	responses []string
	next      int
	err       error

	// Requests records every request received, in call order.
	Requests []CompletionRequest
}

// NewMock builds a mock that replays the given responses.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

// NewFailingMock builds a mock whose every call fails with err.
func NewFailingMock(err error) *Mock {
	return &Mock{err: err}
}

func (m *Mock) Model() string { return "mock" }

// Complete returns the next scripted response.
func (m *Mock) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if m.err != nil {
		return nil, m.err
	}

	content := "mock response"
	if len(m.responses) > 0 {
		idx := m.next
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		}
		content = m.responses[idx]
		m.next++
	}

	return &CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage:      TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// CallCount reports how many completions were requested.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastPrompt returns the content of the final message of the most recent
// request, for prompt assertions in tests.
func (m *Mock) LastPrompt() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return "", fmt.Errorf("no requests recorded")
	}
	msgs := m.Requests[len(m.Requests)-1].Messages
	if len(msgs) == 0 {
		return "", fmt.Errorf("last request has no messages")
	}
	return msgs[len(msgs)-1].Content, nil
}
