package store

import (
	"agora.app/verdict/core/db"
)

// Stores bundles the entity stores over a single query runner, so the same
// accessors work on the pool and inside a transaction.
type Stores struct {
	q db.Querier
}

func NewStores(q db.Querier) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Topics() TopicStore {
	return newTopicStore(s.q)
}

func (s *Stores) Arguments() ArgumentStore {
	return newArgumentStore(s.q)
}

func (s *Stores) Matches() MatchStore {
	return newMatchStore(s.q)
}
