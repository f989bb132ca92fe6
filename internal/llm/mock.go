package llm

import "context"

// MockModel returns canned responses in order, falling back to the last one.
// It records every prompt it receives for assertions.
type MockModel struct {
	Responses []string
	Err       error
	Prompts   [][]Message

	calls int
}

func (m *MockModel) Complete(_ context.Context, messages []Message) (string, error) {
	m.Prompts = append(m.Prompts, messages)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := m.calls
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	m.calls++
	return m.Responses[idx], nil
}
