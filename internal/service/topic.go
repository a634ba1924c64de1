package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agora.app/verdict/common"
	"agora.app/verdict/common/id"
	"agora.app/verdict/internal/model"
	"agora.app/verdict/internal/pipeline"
	"agora.app/verdict/internal/store"
)

var ErrTopicNotFound = errors.New("topic not found")

const defaultTopicListLimit = 50

type CreateTopicParams struct {
	Question  string `json:"question"`
	CreatedBy string `json:"created_by,omitempty"`
}

// TopicView is a topic with everything the debate page shows: arguments in
// display order, per-side score averages, controversy level, and rebuttal
// matches.
type TopicView struct {
	Topic       *model.Topic
	Arguments   []model.Argument
	ProAverage  *float64
	ConAverage  *float64
	Controversy string
	Matches     []model.ArgumentMatch
}

// TopicSummary is one row of the topic index.
type TopicSummary struct {
	Topic    model.Topic
	ProCount int64
	ConCount int64
}

type TopicService interface {
	Create(ctx context.Context, params CreateTopicParams) (*model.Topic, error)
	Get(ctx context.Context, slug string) (*TopicView, error)
	List(ctx context.Context, limit int32) ([]TopicSummary, error)
}

type topicService struct {
	topics    store.TopicStore
	arguments store.ArgumentStore
	matches   store.MatchStore
}

func NewTopicService(topics store.TopicStore, arguments store.ArgumentStore, matches store.MatchStore) TopicService {
	return &topicService{
		topics:    topics,
		arguments: arguments,
		matches:   matches,
	}
}

func (s *topicService) Create(ctx context.Context, params CreateTopicParams) (*model.Topic, error) {
	question := strings.TrimSpace(params.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	slug, err := s.ensureSlug(ctx, question)
	if err != nil {
		return nil, err
	}

	topic := &model.Topic{
		ID:        id.New(),
		Question:  question,
		Slug:      slug,
		CreatedBy: strings.TrimSpace(params.CreatedBy),
	}
	if err := s.topics.Create(ctx, topic); err != nil {
		return nil, fmt.Errorf("creating topic: %w", err)
	}

	return topic, nil
}

func (s *topicService) Get(ctx context.Context, slug string) (*TopicView, error) {
	topic, err := s.topics.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("fetching topic: %w", err)
	}

	args, err := s.arguments.ListByTopic(ctx, topic.ID)
	if err != nil {
		return nil, fmt.Errorf("listing arguments: %w", err)
	}

	// Metrics read the raw set; display order is separate.
	proAvg, conAvg := pipeline.SideAverages(args)
	controversy := pipeline.Controversy(args)
	model.SortByValidity(args)

	matches, err := s.matches.ListByTopic(ctx, topic.ID)
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}

	return &TopicView{
		Topic:       topic,
		Arguments:   args,
		ProAverage:  proAvg,
		ConAverage:  conAvg,
		Controversy: controversy,
		Matches:     matches,
	}, nil
}

func (s *topicService) List(ctx context.Context, limit int32) ([]TopicSummary, error) {
	if limit <= 0 {
		limit = defaultTopicListLimit
	}

	topics, err := s.topics.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}

	summaries := make([]TopicSummary, 0, len(topics))
	for _, topic := range topics {
		pro, con, err := s.arguments.CountBySide(ctx, topic.ID)
		if err != nil {
			return nil, fmt.Errorf("counting arguments for topic %d: %w", topic.ID, err)
		}
		summaries = append(summaries, TopicSummary{
			Topic:    topic,
			ProCount: pro,
			ConCount: con,
		})
	}

	return summaries, nil
}

// ensureSlug derives a slug from the question and probes numeric suffixes
// until an unused one is found.
func (s *topicService) ensureSlug(ctx context.Context, question string) (string, error) {
	base, err := common.Slugify(question, "topic")
	if err != nil {
		return "", fmt.Errorf("deriving slug: %w", err)
	}

	available, err := s.slugAvailable(ctx, base)
	if err != nil {
		return "", err
	}
	if available {
		return base, nil
	}

	for suffix := 1; suffix <= 20; suffix++ {
		candidate := fmt.Sprintf("%s-%d", base, suffix)
		available, err := s.slugAvailable(ctx, candidate)
		if err != nil {
			return "", err
		}
		if available {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("unable to find available slug for %q", base)
}

func (s *topicService) slugAvailable(ctx context.Context, slug string) (bool, error) {
	_, err := s.topics.GetBySlug(ctx, slug)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking slug availability: %w", err)
	}
	return false, nil
}
