package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agora.app/verdict/common/id"
	"agora.app/verdict/common/logger"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/store"
)

// ArgumentMatcher pairs rebuttals across sides. Satisfied by *pipeline.Matcher.
type ArgumentMatcher interface {
	Match(ctx context.Context, topicQuestion string, pros, cons []model.Argument) ([]pipeline.MatchPair, error)
}

// DebateSynthesizer produces the cross-argument summary. Satisfied by
// *pipeline.Synthesizer.
type DebateSynthesizer interface {
	Synthesize(ctx context.Context, topicQuestion string, pros, cons []model.Argument) (*pipeline.Synthesis, error)
}

type RefreshSynthesisResult struct {
	Synthesis *pipeline.Synthesis
	Matches   []model.ArgumentMatch
	Persisted bool
}

type SynthesisService interface {
	Refresh(ctx context.Context, topicID int64) (*RefreshSynthesisResult, error)
}

type synthesisService struct {
	topics      store.TopicStore
	arguments   store.ArgumentStore
	txRunner    TxRunner
	matcher     ArgumentMatcher
	synthesizer DebateSynthesizer
	logger      *slog.Logger
}

func NewSynthesisService(topics store.TopicStore, arguments store.ArgumentStore, txRunner TxRunner, matcher ArgumentMatcher, synthesizer DebateSynthesizer, logger *slog.Logger) SynthesisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &synthesisService{
		topics:      topics,
		arguments:   arguments,
		txRunner:    txRunner,
		matcher:     matcher,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Refresh recomputes a topic's rebuttal matches and synthesis from its
// current arguments. Matches replace the prior set wholesale; the synthesis
// overwrites the stored one. A one-sided debate yields the fixed
// insufficient-data result and persists nothing.
func (s *synthesisService) Refresh(ctx context.Context, topicID int64) (*RefreshSynthesisResult, error) {
	topic, err := s.topics.GetByID(ctx, topicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("fetching topic: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TopicID:   &topic.ID,
		Component: "verdict.service.synthesis",
	})

	args, err := s.arguments.ListByTopic(ctx, topic.ID)
	if err != nil {
		return nil, fmt.Errorf("listing arguments: %w", err)
	}

	pros, cons := splitBySide(args)

	pairs, err := s.matcher.Match(ctx, topic.Question, pros, cons)
	if err != nil {
		return nil, fmt.Errorf("matching arguments: %w", err)
	}

	synthesis, err := s.synthesizer.Synthesize(ctx, topic.Question, pros, cons)
	if err != nil {
		return nil, fmt.Errorf("synthesizing debate: %w", err)
	}

	if synthesis.InsufficientData {
		s.logger.InfoContext(ctx, "synthesis skipped, needs arguments on both sides",
			"pro_count", len(pros),
			"con_count", len(cons))
		return &RefreshSynthesisResult{Synthesis: synthesis, Matches: []model.ArgumentMatch{}}, nil
	}

	matches := make([]model.ArgumentMatch, 0, len(pairs))
	for _, pair := range pairs {
		matches = append(matches, model.ArgumentMatch{
			ID:            id.New(),
			TopicID:       topic.ID,
			ProArgumentID: pair.ProID,
			ConArgumentID: pair.ConID,
			Reason:        pair.Reason,
		})
	}

	if err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		return sp.Matches().ReplaceForTopic(ctx, topic.ID, matches)
	}); err != nil {
		return nil, fmt.Errorf("saving matches: %w", err)
	}

	if err := s.topics.UpdateSynthesis(ctx, topic.ID, synthesis.OverallSummary, synthesis.ConsensusView, synthesis.Timeline); err != nil {
		return nil, fmt.Errorf("saving synthesis: %w", err)
	}

	s.logger.InfoContext(ctx, "debate synthesis refreshed",
		"match_count", len(matches),
		"timeline_periods", len(synthesis.Timeline))

	return &RefreshSynthesisResult{Synthesis: synthesis, Matches: matches, Persisted: true}, nil
}

func splitBySide(args []model.Argument) (pros, cons []model.Argument) {
	for _, arg := range args {
		if arg.Side == model.SidePro {
			pros = append(pros, arg)
		} else {
			cons = append(cons, arg)
		}
	}
	return pros, cons
}
