package worker_test

import (
	"context"
	"sync"

	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/queue"
)

type requeuedCall struct {
	messageID string
	errMsg    string
}

type dlqCall struct {
	messageID string
	errMsg    string
}

type mockConsumer struct {
	mu sync.Mutex

	readFn func(ctx context.Context) ([]queue.Message, error)
	ackErr error

	acked    []string
	requeued []requeuedCall
	dlq      []dlqCall
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return []queue.Message{}, nil
}

func (m *mockConsumer) Ack(ctx context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ackErr != nil {
		return m.ackErr
	}
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, requeuedCall{messageID: msg.ID, errMsg: errMsg})
	return nil
}

func (m *mockConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, dlqCall{messageID: msg.ID, errMsg: errMsg})
	return nil
}

func (m *mockConsumer) ackedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acked...)
}

func (m *mockConsumer) requeuedCalls() []requeuedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]requeuedCall(nil), m.requeued...)
}

func (m *mockConsumer) dlqCalls() []dlqCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dlqCall(nil), m.dlq...)
}

type mockTaskProcessor struct {
	mu        sync.Mutex
	processFn func(ctx context.Context, msg queue.Message) error
	callCount int
}

func (m *mockTaskProcessor) Process(ctx context.Context, msg queue.Message) error {
	m.mu.Lock()
	m.callCount++
	fn := m.processFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return nil
}

func (m *mockTaskProcessor) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

type mockVerifier struct {
	verifyArgumentFn func(ctx context.Context, argumentID int64) (*pipeline.Verdict, error)
	verifyTopicFn    func(ctx context.Context, topicID int64, force bool) (*pipeline.Report, error)
}

func (m *mockVerifier) VerifyArgument(ctx context.Context, argumentID int64) (*pipeline.Verdict, error) {
	if m.verifyArgumentFn != nil {
		return m.verifyArgumentFn(ctx, argumentID)
	}
	return &pipeline.Verdict{KeyURLs: []string{}}, nil
}

func (m *mockVerifier) VerifyTopic(ctx context.Context, topicID int64, force bool) (*pipeline.Report, error) {
	if m.verifyTopicFn != nil {
		return m.verifyTopicFn(ctx, topicID, force)
	}
	return &pipeline.Report{Results: []pipeline.ArgumentResult{}}, nil
}

func argMessage(argumentID int64, attempt int) queue.Message {
	id := argumentID
	return queue.Message{
		ID:         "1-0",
		TaskType:   queue.TaskTypeVerifyArgument,
		ArgumentID: &id,
		Attempt:    attempt,
	}
}

func topicMessage(topicID int64, force bool) queue.Message {
	id := topicID
	return queue.Message{
		ID:       "2-0",
		TaskType: queue.TaskTypeVerifyTopic,
		TopicID:  &id,
		Force:    force,
		Attempt:  1,
	}
}
