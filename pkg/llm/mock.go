package llm

import (
	"context"
)

// MockClient is a configurable mock for testing the generation pipeline.
// Set the function field to control behavior in tests.
type MockClient struct {
	// GenerateRecordsFunc is called when GenerateRecords is invoked.
	// If nil, returns an empty result and nil error.
	GenerateRecordsFunc func(ctx context.Context, req *Request) (*GenerationResult, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Call tracking for verification.
	GenerateRecordsCalls int
	Prompts              []string
}

// NewMockClient creates a new mock with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{Model: "mock-model"}
}

// GenerateRecords implements Client.
func (m *MockClient) GenerateRecords(ctx context.Context, req *Request) (*GenerationResult, error) {
	m.GenerateRecordsCalls++
	if req != nil {
		m.Prompts = append(m.Prompts, req.Prompt)
	}
	if m.GenerateRecordsFunc != nil {
		return m.GenerateRecordsFunc(ctx, req)
	}
	return &GenerationResult{}, nil
}

// GetModel implements Client.
func (m *MockClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// Reset clears call tracking.
func (m *MockClient) Reset() {
	m.GenerateRecordsCalls = 0
	m.Prompts = nil
}

// Ensure MockClient implements Client at compile time.
var _ Client = (*MockClient)(nil)
