package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"agora.app/verdict/common/logger"
	"agora.app/verdict/core/config"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/store"
)

var (
	ErrArgumentNotFound = errors.New("argument not found")
	ErrTopicNotFound    = errors.New("topic not found")
)

// Verification outcome labels in bulk reports.
const (
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// ArgumentVerifier is satisfied by *FactChecker.
type ArgumentVerifier interface {
	Verify(ctx context.Context, title, content string) (*Verdict, error)
}

// Report aggregates a topic-wide verification run. Results keep the order in
// which arguments were selected so reports are deterministic.
type Report struct {
	Total    int
	Verified int
	Failed   int
	Results  []ArgumentResult
}

// ArgumentResult is one argument's outcome in a bulk run. Score is nil for
// failed entries and for verified arguments whose claim was not checkable.
type ArgumentResult struct {
	ArgumentID int64
	Title      string
	Score      *int32
	Status     string
	Error      string
}

type Orchestrator struct {
	verifier  ArgumentVerifier
	topics    store.TopicStore
	arguments store.ArgumentStore
	cfg       config.VerificationConfig
}

func NewOrchestrator(verifier ArgumentVerifier, topics store.TopicStore, arguments store.ArgumentStore, cfg config.VerificationConfig) *Orchestrator {
	return &Orchestrator{
		verifier:  verifier,
		topics:    topics,
		arguments: arguments,
		cfg:       cfg,
	}
}

// VerifyArgument runs the fact-checker for one argument and persists the
// verdict, replacing any prior validity record wholesale. On error nothing is
// persisted and the prior record stays untouched. Callers use errors.As with
// *VerificationError to decide between requeue and dead-letter.
func (o *Orchestrator) VerifyArgument(ctx context.Context, argumentID int64) (*Verdict, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ArgumentID: &argumentID,
		Component:  "verdict.pipeline.orchestrator",
	})

	arg, err := o.arguments.GetByID(ctx, argumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "argument not found")
			return nil, NewFatalError(fmt.Errorf("argument %d: %w", argumentID, ErrArgumentNotFound))
		}
		return nil, NewRetryableError(fmt.Errorf("fetching argument: %w", err))
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{TopicID: &arg.TopicID})

	verdict, err := o.verifier.Verify(ctx, arg.Title, arg.Content)
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("verifying argument: %w", err))
	}

	if err := o.arguments.SetValidity(ctx, argumentID, verdict.Score, verdict.Reasoning, verdict.KeyURLs); err != nil {
		return nil, NewRetryableError(fmt.Errorf("saving validity record: %w", err))
	}

	return verdict, nil
}

// VerifyTopic fact-checks every unverified argument on a topic, or every
// argument when force is set. Verifications run concurrently behind a
// semaphore and one argument's failure never aborts its siblings. When the
// bulk timeout expires, finished arguments keep their results and the rest
// are reported failed.
func (o *Orchestrator) VerifyTopic(ctx context.Context, topicID int64, force bool) (*Report, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TopicID:   &topicID,
		Component: "verdict.pipeline.orchestrator",
	})

	if _, err := o.topics.GetByID(ctx, topicID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.ErrorContext(ctx, "topic not found")
			return nil, NewFatalError(fmt.Errorf("topic %d: %w", topicID, ErrTopicNotFound))
		}
		return nil, NewRetryableError(fmt.Errorf("fetching topic: %w", err))
	}

	var args []model.Argument
	var err error
	if force {
		args, err = o.arguments.ListByTopic(ctx, topicID)
	} else {
		args, err = o.arguments.ListUnverifiedByTopic(ctx, topicID)
	}
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("listing arguments: %w", err))
	}

	if len(args) == 0 {
		slog.InfoContext(ctx, "no arguments to verify", "force", force)
		return &Report{Results: []ArgumentResult{}}, nil
	}

	slog.InfoContext(ctx, "bulk verification started",
		"argument_count", len(args),
		"force", force,
		"max_concurrent", o.cfg.MaxConcurrent)

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.BulkTimeout)
	defer cancel()

	results := make([]ArgumentResult, len(args))
	var wg sync.WaitGroup

	// Semaphore to respect provider rate limits across the fan-out
	sem := make(chan struct{}, o.cfg.MaxConcurrent)

	for i, arg := range args {
		wg.Add(1)
		go func(idx int, arg model.Argument) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				// Never started; report it rather than leaving the entry ambiguous
				results[idx] = ArgumentResult{
					ArgumentID: arg.ID,
					Title:      arg.Title,
					Status:     StatusFailed,
					Error:      "bulk verification timed out before this argument started",
				}
				return
			}

			results[idx] = o.verifyOne(runCtx, arg)
		}(i, arg)
	}

	wg.Wait()

	report := &Report{Total: len(args), Results: results}
	for _, r := range results {
		if r.Status == StatusVerified {
			report.Verified++
		} else {
			report.Failed++
		}
	}

	slog.InfoContext(ctx, "bulk verification completed",
		"total", report.Total,
		"verified", report.Verified,
		"failed", report.Failed)

	return report, nil
}

func (o *Orchestrator) verifyOne(ctx context.Context, arg model.Argument) ArgumentResult {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ArgumentID: &arg.ID})

	verdict, err := o.verifier.Verify(ctx, arg.Title, arg.Content)
	if err == nil {
		if saveErr := o.arguments.SetValidity(ctx, arg.ID, verdict.Score, verdict.Reasoning, verdict.KeyURLs); saveErr != nil {
			err = fmt.Errorf("saving validity record: %w", saveErr)
		}
	}
	if err != nil {
		slog.WarnContext(ctx, "argument verification failed", "error", err)
		return ArgumentResult{
			ArgumentID: arg.ID,
			Title:      arg.Title,
			Status:     StatusFailed,
			Error:      err.Error(),
		}
	}

	return ArgumentResult{
		ArgumentID: arg.ID,
		Title:      arg.Title,
		Score:      verdict.Score,
		Status:     StatusVerified,
	}
}
