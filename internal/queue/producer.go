package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// TaskMessage is a verification task to enqueue. ArgumentID is set for
// verify_argument tasks, TopicID for verify_topic tasks.
type TaskMessage struct {
	TaskType   TaskType
	ArgumentID *int64
	TopicID    *int64
	Force      bool
	TraceID    *string
	Attempt    int
}

type Producer interface {
	Enqueue(ctx context.Context, msg TaskMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg TaskMessage) error {
	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"task_type": string(msg.TaskType),
		"attempt":   attempt,
	}

	logArgs := []any{"task_type", msg.TaskType, "attempt", attempt}

	if msg.ArgumentID != nil {
		fields["argument_id"] = *msg.ArgumentID
		logArgs = append(logArgs, "argument_id", *msg.ArgumentID)
	}
	if msg.TopicID != nil {
		fields["topic_id"] = *msg.TopicID
		logArgs = append(logArgs, "topic_id", *msg.TopicID)
	}
	if msg.Force {
		fields["force"] = msg.Force
	}
	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued verification task", logArgs...)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
