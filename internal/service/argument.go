package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agora.app/verdict/common/id"
	"agora.app/verdict/common/logger"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/queue"
	"agora.app/verdict/internal/store"
)

var ErrArgumentNotFound = errors.New("argument not found")

// RejectionError is returned when a submission is declined before anything
// is persisted. Reasoning is always non-empty and safe to show to the
// submitter.
type RejectionError struct {
	Reasoning string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("argument rejected: %s", e.Reasoning)
}

// BalanceError reports a submission refused by the side-balance rule: a
// lopsided topic only accepts arguments for its empty side until both sides
// are represented.
type BalanceError struct {
	RequiredSide model.Side
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("topic must have at least 1 pro argument and 1 con argument; please add a %s argument first", e.RequiredSide)
}

type SubmitArgumentParams struct {
	TopicID int64      `json:"topic_id"`
	Side    model.Side `json:"side"`
	Title   string     `json:"title"`
	Content string     `json:"content"`
	Sources string     `json:"sources,omitempty"`
	Author  string     `json:"author,omitempty"`

	TraceID *string `json:"trace_id,omitempty"`
}

type SubmitArgumentResult struct {
	Argument *model.Argument
	Enqueued bool
}

// RelevanceGate is the slice of the pipeline Submit needs. Satisfied by
// *pipeline.RelevanceFilter.
type RelevanceGate interface {
	Evaluate(ctx context.Context, topicQuestion, title, content string) (*pipeline.RelevanceVerdict, error)
}

type ArgumentService interface {
	Submit(ctx context.Context, params SubmitArgumentParams) (*SubmitArgumentResult, error)
	Vote(ctx context.Context, argumentID int64, delta int32) (int32, error)
}

type argumentService struct {
	topics    store.TopicStore
	arguments store.ArgumentStore
	txRunner  TxRunner
	relevance RelevanceGate
	queue     queue.Producer
	logger    *slog.Logger
}

func NewArgumentService(topics store.TopicStore, arguments store.ArgumentStore, txRunner TxRunner, relevance RelevanceGate, producer queue.Producer, logger *slog.Logger) ArgumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &argumentService{
		topics:    topics,
		arguments: arguments,
		txRunner:  txRunner,
		relevance: relevance,
		queue:     producer,
		logger:    logger,
	}
}

// Submit screens a new argument and persists it when it passes. The balance
// rule and the relevance filter both run before anything is written; a
// rejected argument leaves no trace. Verification is enqueued after commit,
// and an enqueue failure downgrades to a warning because bulk verification
// picks up unverified arguments later.
func (s *argumentService) Submit(ctx context.Context, params SubmitArgumentParams) (*SubmitArgumentResult, error) {
	title := strings.TrimSpace(params.Title)
	content := strings.TrimSpace(params.Content)

	if params.TopicID == 0 || title == "" || content == "" {
		return nil, fmt.Errorf("topic_id, title, and content are required")
	}
	if !params.Side.Valid() {
		return nil, fmt.Errorf("side must be %q or %q", model.SidePro, model.SideCon)
	}

	topic, err := s.topics.GetByID(ctx, params.TopicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("fetching topic: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TopicID:   &topic.ID,
		Component: "verdict.service.argument",
	})

	pro, con, err := s.arguments.CountBySide(ctx, topic.ID)
	if err != nil {
		return nil, fmt.Errorf("counting arguments: %w", err)
	}
	if required, ok := requiredSide(pro, con); ok && params.Side != required {
		return nil, &BalanceError{RequiredSide: required}
	}

	verdict, err := s.relevance.Evaluate(ctx, topic.Question, title, content)
	if err != nil {
		// Fails closed: nothing is saved when relevance cannot be checked.
		s.logger.WarnContext(ctx, "relevance filter unavailable, rejecting submission", "error", err)
		reasoning := "Argument verification is temporarily unavailable. Your submission was not saved; please try again shortly."
		if verdict != nil && verdict.Reasoning != "" {
			reasoning = verdict.Reasoning
		}
		return nil, &RejectionError{Reasoning: reasoning}
	}
	if !verdict.Accepted {
		s.logger.InfoContext(ctx, "argument rejected as irrelevant", "reasoning", verdict.Reasoning)
		return nil, &RejectionError{Reasoning: verdict.Reasoning}
	}

	arg := &model.Argument{
		ID:      id.New(),
		TopicID: topic.ID,
		Side:    params.Side,
		Title:   title,
		Content: content,
		Sources: strings.TrimSpace(params.Sources),
		Author:  strings.TrimSpace(params.Author),
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Arguments().Create(ctx, arg); err != nil {
			return fmt.Errorf("creating argument: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	enqueued := true
	if err := s.queue.Enqueue(ctx, queue.TaskMessage{
		TaskType:   queue.TaskTypeVerifyArgument,
		ArgumentID: &arg.ID,
		TraceID:    params.TraceID,
		Attempt:    1,
	}); err != nil {
		// The argument is saved; a later bulk verify catches it if this task is lost.
		s.logger.WarnContext(ctx, "failed to enqueue verification task", "error", err, "argument_id", arg.ID)
		enqueued = false
	}

	s.logger.InfoContext(ctx, "argument submitted",
		"argument_id", arg.ID,
		"side", arg.Side,
		"enqueued", enqueued)

	return &SubmitArgumentResult{Argument: arg, Enqueued: enqueued}, nil
}

// Vote applies a single up or down vote and returns the new count.
func (s *argumentService) Vote(ctx context.Context, argumentID int64, delta int32) (int32, error) {
	if delta != 1 && delta != -1 {
		return 0, fmt.Errorf("vote delta must be +1 or -1")
	}

	votes, err := s.arguments.AddVotes(ctx, argumentID, delta)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrArgumentNotFound
		}
		return 0, fmt.Errorf("recording vote: %w", err)
	}
	return votes, nil
}

func requiredSide(pro, con int64) (model.Side, bool) {
	switch {
	case pro == 0 && con > 0:
		return model.SidePro, true
	case con == 0 && pro > 0:
		return model.SideCon, true
	}
	return "", false
}
