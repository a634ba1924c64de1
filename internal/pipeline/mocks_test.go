package pipeline_test

import (
	"context"
	"errors"
	"sync"

	"agora.app/verdict/common/llm"
	"agora.app/verdict/common/search"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
)

// mockLLMClient implements llm.Client for testing.
type mockLLMClient struct {
	chatFn    func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	callCount int
}

func (m *mockLLMClient) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.callCount++
	if m.chatFn != nil {
		return m.chatFn(ctx, req, result)
	}
	return nil, errors.New("mock not configured")
}

func (m *mockLLMClient) Model() string {
	return "test-model"
}

// mockSearcher implements pipeline.EvidenceSearcher for testing.
type mockSearcher struct {
	searchFn  func(ctx context.Context, query string) ([]search.Source, error)
	callCount int
}

func (m *mockSearcher) Search(ctx context.Context, query string) ([]search.Source, error) {
	m.callCount++
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, errors.New("mock not configured")
}

// mockVerifier implements pipeline.ArgumentVerifier for testing the
// orchestrator without real reasoning calls. Safe for concurrent use.
type mockVerifier struct {
	mu        sync.Mutex
	verifyFn  func(ctx context.Context, title, content string) (*pipeline.Verdict, error)
	callCount int
}

func (m *mockVerifier) Verify(ctx context.Context, title, content string) (*pipeline.Verdict, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.verifyFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, title, content)
	}
	return nil, errors.New("mock not configured")
}

func (m *mockVerifier) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// mockTopicStore implements store.TopicStore for testing.
type mockTopicStore struct {
	getByIDFn func(ctx context.Context, id int64) (*model.Topic, error)
}

func (m *mockTopicStore) GetByID(ctx context.Context, id int64) (*model.Topic, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return &model.Topic{ID: id, Question: "test question"}, nil
}

func (m *mockTopicStore) GetBySlug(context.Context, string) (*model.Topic, error) {
	return nil, nil
}

func (m *mockTopicStore) Create(context.Context, *model.Topic) error {
	return nil
}

func (m *mockTopicStore) List(context.Context, int32) ([]model.Topic, error) {
	return nil, nil
}

func (m *mockTopicStore) UpdateSynthesis(context.Context, int64, string, string, []model.TimelineEntry) error {
	return nil
}

type setValidityCall struct {
	argumentID int64
	score      *int32
	reasoning  string
	keyURLs    []string
}

// mockArgumentStore implements store.ArgumentStore for testing. Safe for
// concurrent use so bulk verification tests can inspect recorded calls.
type mockArgumentStore struct {
	mu               sync.Mutex
	getByIDFn        func(ctx context.Context, id int64) (*model.Argument, error)
	listByTopicFn    func(ctx context.Context, topicID int64) ([]model.Argument, error)
	listUnverifiedFn func(ctx context.Context, topicID int64) ([]model.Argument, error)
	setValidityFn    func(ctx context.Context, id int64, score *int32, reasoning string, keyURLs []string) error
	validityCalls    []setValidityCall
}

func (m *mockArgumentStore) GetByID(ctx context.Context, id int64) (*model.Argument, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, errors.New("mock not configured")
}

func (m *mockArgumentStore) Create(context.Context, *model.Argument) error {
	return nil
}

func (m *mockArgumentStore) ListByTopic(ctx context.Context, topicID int64) ([]model.Argument, error) {
	if m.listByTopicFn != nil {
		return m.listByTopicFn(ctx, topicID)
	}
	return nil, nil
}

func (m *mockArgumentStore) ListUnverifiedByTopic(ctx context.Context, topicID int64) ([]model.Argument, error) {
	if m.listUnverifiedFn != nil {
		return m.listUnverifiedFn(ctx, topicID)
	}
	return nil, nil
}

func (m *mockArgumentStore) CountBySide(context.Context, int64) (int64, int64, error) {
	return 0, 0, nil
}

func (m *mockArgumentStore) AddVotes(context.Context, int64, int32) (int32, error) {
	return 0, nil
}

func (m *mockArgumentStore) SetValidity(ctx context.Context, id int64, score *int32, reasoning string, keyURLs []string) error {
	m.mu.Lock()
	m.validityCalls = append(m.validityCalls, setValidityCall{
		argumentID: id,
		score:      score,
		reasoning:  reasoning,
		keyURLs:    keyURLs,
	})
	fn := m.setValidityFn
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, id, score, reasoning, keyURLs)
	}
	return nil
}

func (m *mockArgumentStore) recordedCalls() []setValidityCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]setValidityCall(nil), m.validityCalls...)
}

func (m *mockArgumentStore) recordedCallFor(argumentID int64) (setValidityCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.validityCalls {
		if c.argumentID == argumentID {
			return c, true
		}
	}
	return setValidityCall{}, false
}

func scorePtr(s int32) *int32 {
	return &s
}
