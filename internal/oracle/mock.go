package oracle

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a deterministic test implementation of the Client interface.
// It classifies by entity-name keywords and records every call so tests can
// assert on oracle traffic (most importantly, its absence after a pattern
// is learned).
type MockClient struct {
	JudgeRow      int // row JudgeHeader returns; -1 means "prefer later candidate"
	ClassifyErr   error
	JudgeErr      error
	classifyCalls []ClassificationRequest
	judgeCalls    []HeaderJudgeRequest
	mu            sync.Mutex
}

// NewMockClient creates a mock oracle.
func NewMockClient() *MockClient {
	return &MockClient{JudgeRow: -1}
}

// ClassifyRow returns keyword-driven deterministic classifications.
func (m *MockClient) ClassifyRow(_ context.Context, req ClassificationRequest) (ClassificationResponse, error) {
	m.mu.Lock()
	m.classifyCalls = append(m.classifyCalls, req)
	m.mu.Unlock()

	if m.ClassifyErr != nil {
		return ClassificationResponse{}, m.ClassifyErr
	}

	entity := strings.ToLower(req.Entity)

	switch {
	case strings.Contains(entity, "coffee") || strings.Contains(entity, "latte"):
		return ClassificationResponse{Category: "Beverages", SubCategory: "Hot Drinks", Confidence: 92}, nil
	case strings.Contains(entity, "burger") || strings.Contains(entity, "pizza"):
		return ClassificationResponse{Category: "Food", SubCategory: "Mains", Confidence: 90}, nil
	case strings.Contains(entity, "rent"):
		return ClassificationResponse{Category: "Overheads", SubCategory: "Rent", Confidence: 97}, nil
	case strings.Contains(entity, "salary") || strings.Contains(entity, "wages"):
		return ClassificationResponse{Category: "Payroll", Confidence: 95}, nil
	case strings.Contains(entity, "mystery"):
		return ClassificationResponse{Category: "Uncategorized", Confidence: 40}, nil
	default:
		return ClassificationResponse{Category: "Uncategorized", Confidence: 60}, nil
	}
}

// JudgeHeader picks JudgeRow when set, otherwise the later candidate (the
// detail ledger usually sits below the summary table).
func (m *MockClient) JudgeHeader(_ context.Context, req HeaderJudgeRequest) (HeaderJudgeResponse, error) {
	m.mu.Lock()
	m.judgeCalls = append(m.judgeCalls, req)
	m.mu.Unlock()

	if m.JudgeErr != nil {
		return HeaderJudgeResponse{}, m.JudgeErr
	}

	if m.JudgeRow >= 0 {
		return HeaderJudgeResponse{Row: m.JudgeRow}, nil
	}

	best := req.Candidates[0].Row
	for _, cand := range req.Candidates[1:] {
		if cand.Row > best {
			best = cand.Row
		}
	}
	return HeaderJudgeResponse{Row: best}, nil
}

// ClassifyCalls returns a copy of the recorded classification requests.
func (m *MockClient) ClassifyCalls() []ClassificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]ClassificationRequest, len(m.classifyCalls))
	copy(calls, m.classifyCalls)
	return calls
}

// ClassifyCallCount returns how many times ClassifyRow was invoked.
func (m *MockClient) ClassifyCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.classifyCalls)
}

// JudgeCallCount returns how many times JudgeHeader was invoked.
func (m *MockClient) JudgeCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.judgeCalls)
}

// Reset clears all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classifyCalls = nil
	m.judgeCalls = nil
}
