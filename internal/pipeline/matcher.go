package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora.app/verdict/common/llm"
	"agora.app/verdict/common/logger"
	"agora.app/verdict/internal/model"
)

type MatchResponse struct {
	Matches []MatchItem `json:"matches" jsonschema_description:"Pairs of arguments that directly rebut each other"`
}

type MatchItem struct {
	ProID  int64  `json:"pro_id" jsonschema_description:"ID of the pro argument, taken from the pro list"`
	ConID  int64  `json:"con_id" jsonschema_description:"ID of the con argument, taken from the con list"`
	Reason string `json:"reason" jsonschema_description:"One sentence naming the sub-claim the two arguments dispute"`
}

var matchSchema = llm.GenerateSchema[MatchResponse]()

// MatchPair links a pro argument to a con argument it directly rebuts.
type MatchPair struct {
	ProID  int64
	ConID  int64
	Reason string
}

// Arguments per side in a single reasoning call. Larger topics are matched
// batch against batch and the results merged, so every pro/con combination is
// still considered exactly once.
const matchBatchSize = 10

type Matcher struct {
	llm llm.Client
}

func NewMatcher(client llm.Client) *Matcher {
	return &Matcher{llm: client}
}

// Match identifies which pro arguments directly rebut which con arguments.
// The relation is many-to-many and may be empty. Pairs referencing IDs that
// are not in the given lists are dropped with a warning; duplicate pairs keep
// the first occurrence. An empty side returns an empty result without calling
// the reasoning service.
func (m *Matcher) Match(ctx context.Context, topicQuestion string, pros, cons []model.Argument) ([]MatchPair, error) {
	if len(pros) == 0 || len(cons) == 0 {
		return []MatchPair{}, nil
	}

	start := time.Now()

	proIDs := argumentIDSet(pros)
	conIDs := argumentIDSet(cons)

	type pairKey struct{ pro, con int64 }
	seen := make(map[pairKey]struct{})
	pairs := make([]MatchPair, 0)
	dropped := 0

	for pi := 0; pi < len(pros); pi += matchBatchSize {
		proBatch := pros[pi:min(pi+matchBatchSize, len(pros))]

		for ci := 0; ci < len(cons); ci += matchBatchSize {
			conBatch := cons[ci:min(ci+matchBatchSize, len(cons))]

			response, err := m.matchBatch(ctx, topicQuestion, proBatch, conBatch)
			if err != nil {
				return nil, err
			}

			for _, item := range response.Matches {
				if _, ok := proIDs[item.ProID]; !ok {
					dropped++
					slog.WarnContext(ctx, "match references unknown pro argument", "pro_id", item.ProID)
					continue
				}
				if _, ok := conIDs[item.ConID]; !ok {
					dropped++
					slog.WarnContext(ctx, "match references unknown con argument", "con_id", item.ConID)
					continue
				}

				key := pairKey{pro: item.ProID, con: item.ConID}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}

				pairs = append(pairs, MatchPair{ProID: item.ProID, ConID: item.ConID, Reason: item.Reason})
			}
		}
	}

	slog.InfoContext(ctx, "arguments matched",
		"pro_count", len(pros),
		"con_count", len(cons),
		"pair_count", len(pairs),
		"dropped", dropped,
		"latency_ms", time.Since(start).Milliseconds())

	return pairs, nil
}

func (m *Matcher) matchBatch(ctx context.Context, topicQuestion string, pros, cons []model.Argument) (*MatchResponse, error) {
	var response MatchResponse

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = m.llm.Chat(ctx, llm.Request{
			SystemPrompt: matchSystemPrompt,
			UserPrompt:   buildMatchPrompt(topicQuestion, pros, cons),
			SchemaName:   "match_response",
			Schema:       matchSchema,
			MaxTokens:    2000,
			Temperature:  llm.Temp(0.1),
		}, &response)

		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return nil, fmt.Errorf("matching arguments: %w", err)
		}
		slog.WarnContext(ctx, "argument matching retry",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("matching arguments after 3 attempts: %w", err)
	}

	return &response, nil
}

func argumentIDSet(args []model.Argument) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(args))
	for _, a := range args {
		ids[a.ID] = struct{}{}
	}
	return ids
}

func buildMatchPrompt(topicQuestion string, pros, cons []model.Argument) string {
	var sb strings.Builder

	sb.WriteString("## Debate question\n")
	sb.WriteString(topicQuestion)

	sb.WriteString("\n\n## Pro arguments\n")
	writeArgumentList(&sb, pros)

	sb.WriteString("\n## Con arguments\n")
	writeArgumentList(&sb, cons)

	return sb.String()
}

func writeArgumentList(sb *strings.Builder, args []model.Argument) {
	for _, a := range args {
		fmt.Fprintf(sb, "\nID: %d\nTitle: %s\nContent: %s\n", a.ID, a.Title, logger.Truncate(a.Content, 1500))
	}
}

const matchSystemPrompt = `You analyze a debate to find direct rebuttals. Given pro arguments and con arguments on the same debate question, identify which pairs argue opposite positions on the same specific sub-claim.

A pair is a match only when the two arguments dispute the same point, one affirming it and the other denying or undermining it. Being about the same broad topic is not enough.

Rules:
- A pro argument may rebut zero, one, or several con arguments, and vice versa.
- Use only IDs that appear in the lists. Never invent IDs.
- When no pair rebuts, return an empty matches array.
- For each match give a one-sentence reason naming the disputed sub-claim.`
