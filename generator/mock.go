package generator

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a test double for Generator. Responses queue in FIFO order; when
// the queue is empty it falls back to echoing the prompt, which is usually
// enough for composer-level tests that only care about call count and
// wiring, not content.
type Mock struct {
	mu        sync.Mutex
	Responses []MockResponse
	Calls     []MockCall
}

// MockCall records one invocation for assertions in tests.
type MockCall struct {
	Prompt            string
	SystemInstruction string
	Config            Config
}

// MockResponse is a canned reply, or an error to return instead.
type MockResponse struct {
	Text               string
	StructuredResponse map[string]interface{}
	Err                error
}

// NewMock creates a Mock with no queued responses.
func NewMock() *Mock {
	return &Mock{}
}

// Enqueue appends responses to be returned in order, one per Generate call.
func (m *Mock) Enqueue(responses ...MockResponse) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, responses...)
	return m
}

// EnqueueText is a convenience wrapper for the common case of a plain-text
// reply.
func (m *Mock) EnqueueText(text string) *Mock {
	return m.Enqueue(MockResponse{Text: text})
}

// Generate implements Generator.
func (m *Mock) Generate(_ context.Context, prompt, systemInstruction string, cfg Config) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Prompt: prompt, SystemInstruction: systemInstruction, Config: cfg})

	if len(m.Responses) == 0 {
		return &Response{Text: fmt.Sprintf("echo: %s", prompt)}, nil
	}

	next := m.Responses[0]
	m.Responses = m.Responses[1:]
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Text: next.Text, StructuredResponse: next.StructuredResponse}, nil
}

// CallCount reports how many times Generate has been invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

var _ Generator = (*Mock)(nil)
