package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"agora.app/verdict/core/db"
	"agora.app/verdict/internal/model"
	"github.com/jackc/pgx/v5"
)

const topicColumns = `id, question, slug, created_by, overall_summary, consensus_view, timeline_view, created_at`

type topicStore struct {
	q db.Querier
}

func newTopicStore(q db.Querier) TopicStore {
	return &topicStore{q: q}
}

func (s *topicStore) GetByID(ctx context.Context, id int64) (*model.Topic, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)
	return scanTopic(row)
}

func (s *topicStore) GetBySlug(ctx context.Context, slug string) (*model.Topic, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE slug = $1`, slug)
	return scanTopic(row)
}

func (s *topicStore) Create(ctx context.Context, topic *model.Topic) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO topics (id, question, slug, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		topic.ID, topic.Question, topic.Slug, topic.CreatedBy)
	return row.Scan(&topic.CreatedAt)
}

func (s *topicStore) List(ctx context.Context, limit int32) ([]model.Topic, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+topicColumns+` FROM topics ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []model.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *topic)
	}
	return topics, rows.Err()
}

func (s *topicStore) UpdateSynthesis(ctx context.Context, id int64, summary, consensus string, timeline []model.TimelineEntry) error {
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE topics
		 SET overall_summary = $2, consensus_view = $3, timeline_view = $4
		 WHERE id = $1`,
		id, summary, consensus, timelineJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanTopic reads one topic row; works for QueryRow and Rows.
func scanTopic(row pgx.Row) (*model.Topic, error) {
	var (
		topic        model.Topic
		timelineJSON []byte
	)
	err := row.Scan(
		&topic.ID,
		&topic.Question,
		&topic.Slug,
		&topic.CreatedBy,
		&topic.OverallSummary,
		&topic.ConsensusView,
		&timelineJSON,
		&topic.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &topic.TimelineView); err != nil {
			return nil, fmt.Errorf("unmarshal timeline: %w", err)
		}
	}

	return &topic, nil
}
