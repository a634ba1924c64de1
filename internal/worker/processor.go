package worker

import (
	"context"
	"fmt"
	"log/slog"

	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/queue"
)

// Verifier is the slice of the pipeline orchestrator the worker drives.
type Verifier interface {
	VerifyArgument(ctx context.Context, argumentID int64) (*pipeline.Verdict, error)
	VerifyTopic(ctx context.Context, topicID int64, force bool) (*pipeline.Report, error)
}

// Processor executes verification tasks against the pipeline.
type Processor struct {
	verifier Verifier
}

func NewProcessor(verifier Verifier) *Processor {
	return &Processor{verifier: verifier}
}

func (p *Processor) Process(ctx context.Context, msg queue.Message) error {
	switch msg.TaskType {
	case queue.TaskTypeVerifyArgument:
		verdict, err := p.verifier.VerifyArgument(ctx, *msg.ArgumentID)
		if err != nil {
			return fmt.Errorf("verifying argument: %w", err)
		}

		logArgs := []any{"source_count", verdict.SourceCount}
		if verdict.Score != nil {
			logArgs = append(logArgs, "score", *verdict.Score)
		} else {
			logArgs = append(logArgs, "checkable", false)
		}
		slog.InfoContext(ctx, "argument verified", logArgs...)
		return nil

	case queue.TaskTypeVerifyTopic:
		if _, err := p.verifier.VerifyTopic(ctx, *msg.TopicID, msg.Force); err != nil {
			return fmt.Errorf("verifying topic: %w", err)
		}
		return nil

	default:
		// ParseMessage rejects unknown types, so this only fires when the
		// two fall out of sync.
		return pipeline.NewFatalError(fmt.Errorf("unknown task type %q", msg.TaskType))
	}
}
