package llm

import (
	"context"
	"sync"
)

// Mock is a canned Provider for tests and offline development.
type Mock struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []string
	next      int
}

// NewMock creates a mock provider that replays the given responses in
// order, repeating the last one once exhausted.
func NewMock(responses ...string) *Mock {
	return &Mock{responses: responses}
}

// NewMockError creates a mock provider that always fails.
func NewMockError(err error) *Mock {
	return &Mock{err: err}
}

func (m *Mock) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	resp := m.responses[m.next]
	if m.next < len(m.responses)-1 {
		m.next++
	}
	return resp, nil
}

// Calls returns the prompts received so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
