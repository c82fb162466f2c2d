package client

import (
	"context"
	"sync"

	"github.com/YuminosukeSato/ecgstudio/schema"
)

// MockClient is a scripted SessionClient for tests.
//
// Status reads pop StatusScript in order; once it is exhausted the last
// entry is repeated. A non-nil entry in StatusErrors at the same position
// fails that read instead.
type MockClient struct {
	Mu sync.Mutex

	// Responses
	SessionID      string
	StatusScript   []*TrainingStatus
	AnalysisResult *AnalysisResult

	// Error injection
	CreateTrainingError error
	StatusErrors        []error
	AnalysisError       error

	// Blocks status reads until a value is received, when set
	StatusGate chan struct{}

	// Call tracking
	CreateTrainingCalled int
	GetStatusCalled      int
	AnalysisCalled       int

	// Capture parameters
	LastConfig          schema.TrainingConfig
	LastStatusID        string
	StatusIDs           []string
	LastAnalysisRequest AnalysisRequest
}

var _ SessionClient = (*MockClient)(nil)

// NewMockClient returns a mock that creates session "abc" and reports it done.
func NewMockClient() *MockClient {
	return &MockClient{
		SessionID:    "abc",
		StatusScript: []*TrainingStatus{{Status: StatusDone}},
	}
}

func (m *MockClient) CreateTrainingSession(ctx context.Context, cfg schema.TrainingConfig) (string, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CreateTrainingCalled++
	m.LastConfig = cfg.Clone()
	if m.CreateTrainingError != nil {
		return "", m.CreateTrainingError
	}
	return m.SessionID, nil
}

func (m *MockClient) GetTrainingSession(ctx context.Context, id string) (*TrainingStatus, error) {
	m.Mu.Lock()
	gate := m.StatusGate
	m.Mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()
	call := m.GetStatusCalled
	m.GetStatusCalled++
	m.LastStatusID = id
	m.StatusIDs = append(m.StatusIDs, id)

	if call < len(m.StatusErrors) && m.StatusErrors[call] != nil {
		return nil, m.StatusErrors[call]
	}
	if len(m.StatusScript) == 0 {
		return &TrainingStatus{Status: StatusInitialized}, nil
	}
	idx := call
	if idx >= len(m.StatusScript) {
		idx = len(m.StatusScript) - 1
	}
	s := *m.StatusScript[idx]
	return &s, nil
}

func (m *MockClient) CreateAnalysisSession(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.AnalysisCalled++
	m.LastAnalysisRequest = req
	if m.AnalysisError != nil {
		return nil, m.AnalysisError
	}
	if m.AnalysisResult == nil {
		return &AnalysisResult{}, nil
	}
	r := *m.AnalysisResult
	return &r, nil
}

// StatusCalls returns the number of status reads so far.
func (m *MockClient) StatusCalls() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.GetStatusCalled
}
