package store

import (
	"context"

	"agora.app/verdict/core/db"
	"agora.app/verdict/internal/model"
)

type matchStore struct {
	q db.Querier
}

func newMatchStore(q db.Querier) MatchStore {
	return &matchStore{q: q}
}

func (s *matchStore) ListByTopic(ctx context.Context, topicID int64) ([]model.ArgumentMatch, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, topic_id, pro_argument_id, con_argument_id, reason, created_at
		 FROM argument_matches
		 WHERE topic_id = $1
		 ORDER BY created_at ASC, id ASC`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []model.ArgumentMatch
	for rows.Next() {
		var m model.ArgumentMatch
		if err := rows.Scan(&m.ID, &m.TopicID, &m.ProArgumentID, &m.ConArgumentID, &m.Reason, &m.CreatedAt); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ReplaceForTopic swaps the topic's match set wholesale. Callers run it
// inside a transaction so readers never observe a half-replaced set.
func (s *matchStore) ReplaceForTopic(ctx context.Context, topicID int64, matches []model.ArgumentMatch) error {
	if _, err := s.q.Exec(ctx,
		`DELETE FROM argument_matches WHERE topic_id = $1`, topicID); err != nil {
		return err
	}

	for i := range matches {
		m := &matches[i]
		row := s.q.QueryRow(ctx,
			`INSERT INTO argument_matches (id, topic_id, pro_argument_id, con_argument_id, reason)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING created_at`,
			m.ID, topicID, m.ProArgumentID, m.ConArgumentID, m.Reason)
		if err := row.Scan(&m.CreatedAt); err != nil {
			return err
		}
		m.TopicID = topicID
	}

	return nil
}
