package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agora.app/verdict/common/logger"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/queue"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer  Consumer
	processor TaskProcessor
	cfg       Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, processor TaskProcessor, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.HandleMessage(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
		}
	}

	return nil
}

// HandleMessage runs one task, acking on success and routing failures to
// requeue or the DLQ. The returned error reports a failure that has already
// been routed; callers only log it. Exported so the reclaimer can push
// reclaimed messages through the same retry accounting.
func (w *Worker) HandleMessage(ctx context.Context, msg queue.Message) error {
	err := w.processMessageSafe(ctx, msg)
	if err == nil {
		return nil
	}

	w.handleFailedMessage(ctx, msg, err)
	return err
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

func (w *Worker) processMessage(ctx context.Context, msg queue.Message) error {
	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	taskType := string(msg.TaskType)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:  "verdict.worker",
		MessageID:  &msg.ID,
		TaskType:   &taskType,
		ArgumentID: msg.ArgumentID,
		TopicID:    msg.TopicID,
	})

	slog.InfoContext(ctx, "processing task", "attempt", msg.Attempt)

	start := time.Now()
	if err := w.processor.Process(ctx, msg); err != nil {
		sc.RecordError(err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The task outcome is already persisted, so a lost ACK only means
		// the reclaimer re-runs an idempotent verification.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "task completed",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	retryable := true
	var verr *pipeline.VerificationError
	if errors.As(err, &verr) {
		retryable = verr.Retryable
	}

	if !retryable || msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "sending message to DLQ",
			"message_id", msg.ID,
			"task_type", msg.TaskType,
			"attempts", msg.Attempt,
			"retryable", retryable)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
