package store

import (
	"context"
	"errors"

	"agora.app/verdict/core/db"
	"agora.app/verdict/internal/model"
	"github.com/jackc/pgx/v5"
)

const argumentColumns = `id, topic_id, side, title, content, sources, author, votes,
	validity_score, validity_reasoning, validity_checked_at, key_urls, created_at`

type argumentStore struct {
	q db.Querier
}

func newArgumentStore(q db.Querier) ArgumentStore {
	return &argumentStore{q: q}
}

func (s *argumentStore) GetByID(ctx context.Context, id int64) (*model.Argument, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+argumentColumns+` FROM arguments WHERE id = $1`, id)
	return scanArgument(row)
}

func (s *argumentStore) Create(ctx context.Context, arg *model.Argument) error {
	row := s.q.QueryRow(ctx,
		`INSERT INTO arguments (id, topic_id, side, title, content, sources, author)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING votes, created_at`,
		arg.ID, arg.TopicID, arg.Side, arg.Title, arg.Content, arg.Sources, arg.Author)
	return row.Scan(&arg.Votes, &arg.CreatedAt)
}

func (s *argumentStore) ListByTopic(ctx context.Context, topicID int64) ([]model.Argument, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+argumentColumns+` FROM arguments
		 WHERE topic_id = $1
		 ORDER BY created_at ASC`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArguments(rows)
}

func (s *argumentStore) ListUnverifiedByTopic(ctx context.Context, topicID int64) ([]model.Argument, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+argumentColumns+` FROM arguments
		 WHERE topic_id = $1 AND validity_checked_at IS NULL
		 ORDER BY created_at ASC`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArguments(rows)
}

func (s *argumentStore) CountBySide(ctx context.Context, topicID int64) (pro, con int64, err error) {
	row := s.q.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE side = 'pro'),
			COUNT(*) FILTER (WHERE side = 'con')
		 FROM arguments WHERE topic_id = $1`, topicID)
	if err := row.Scan(&pro, &con); err != nil {
		return 0, 0, err
	}
	return pro, con, nil
}

// AddVotes applies the delta as a single atomic update so concurrent votes
// never lose increments to a read-modify-write race.
func (s *argumentStore) AddVotes(ctx context.Context, id int64, delta int32) (int32, error) {
	var votes int32
	err := s.q.QueryRow(ctx,
		`UPDATE arguments SET votes = votes + $2 WHERE id = $1 RETURNING votes`, id, delta).
		Scan(&votes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return votes, nil
}

// SetValidity persists a verification outcome. A nil score records the
// reasoning for a claim that could not be checked while leaving the argument
// unverified: validity_checked_at stays NULL so the next bulk run retries it.
func (s *argumentStore) SetValidity(ctx context.Context, id int64, score *int32, reasoning string, keyURLs []string) error {
	if keyURLs == nil {
		keyURLs = []string{}
	}

	tag, err := s.q.Exec(ctx,
		`UPDATE arguments
		 SET validity_score = $2,
		     validity_reasoning = $3,
		     key_urls = $4,
		     validity_checked_at = CASE WHEN $2::int IS NULL THEN NULL ELSE now() END
		 WHERE id = $1`,
		id, score, reasoning, keyURLs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanArgument reads one argument row; works for QueryRow and Rows.
func scanArgument(row pgx.Row) (*model.Argument, error) {
	var arg model.Argument
	err := row.Scan(
		&arg.ID,
		&arg.TopicID,
		&arg.Side,
		&arg.Title,
		&arg.Content,
		&arg.Sources,
		&arg.Author,
		&arg.Votes,
		&arg.ValidityScore,
		&arg.ValidityReasoning,
		&arg.ValidityCheckedAt,
		&arg.KeyURLs,
		&arg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &arg, nil
}

func collectArguments(rows pgx.Rows) ([]model.Argument, error) {
	var args []model.Argument
	for rows.Next() {
		arg, err := scanArgument(rows)
		if err != nil {
			return nil, err
		}
		args = append(args, *arg)
	}
	return args, rows.Err()
}
