package store

import (
	"context"
	"errors"

	"agora.app/verdict/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// TopicStore defines the contract for debate topic data access
type TopicStore interface {
	GetByID(ctx context.Context, id int64) (*model.Topic, error)
	GetBySlug(ctx context.Context, slug string) (*model.Topic, error)
	Create(ctx context.Context, topic *model.Topic) error
	List(ctx context.Context, limit int32) ([]model.Topic, error)
	UpdateSynthesis(ctx context.Context, id int64, summary, consensus string, timeline []model.TimelineEntry) error
}

// ArgumentStore defines the contract for argument data access
type ArgumentStore interface {
	GetByID(ctx context.Context, id int64) (*model.Argument, error)
	Create(ctx context.Context, arg *model.Argument) error
	ListByTopic(ctx context.Context, topicID int64) ([]model.Argument, error)
	ListUnverifiedByTopic(ctx context.Context, topicID int64) ([]model.Argument, error)
	CountBySide(ctx context.Context, topicID int64) (pro, con int64, err error)
	AddVotes(ctx context.Context, id int64, delta int32) (int32, error)
	SetValidity(ctx context.Context, id int64, score *int32, reasoning string, keyURLs []string) error
}

// MatchStore defines the contract for rebuttal match data access
type MatchStore interface {
	ListByTopic(ctx context.Context, topicID int64) ([]model.ArgumentMatch, error)
	ReplaceForTopic(ctx context.Context, topicID int64, matches []model.ArgumentMatch) error
}
