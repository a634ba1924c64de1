package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agora.app/verdict/common/llm"
)

type RelevanceResponse struct {
	IsRelevant bool   `json:"is_relevant" jsonschema_description:"Whether the argument is on-topic and contains a checkable factual claim"`
	Reasoning  string `json:"reasoning" jsonschema_description:"One or two sentences explaining the decision, shown to the submitter on rejection"`
}

var relevanceSchema = llm.GenerateSchema[RelevanceResponse]()

// RelevanceVerdict is the filter's decision on a submitted argument.
// Reasoning is always non-empty when Accepted is false.
type RelevanceVerdict struct {
	Accepted  bool
	Reasoning string
}

type RelevanceFilter struct {
	llm llm.Client
}

func NewRelevanceFilter(client llm.Client) *RelevanceFilter {
	return &RelevanceFilter{llm: client}
}

// Evaluate decides whether an argument belongs in the debate before anything
// is persisted. The filter fails closed: when the reasoning service is
// unreachable or keeps returning malformed output, the verdict rejects with a
// "verification unavailable" reason and the underlying error is returned
// alongside so callers can log it. Unchecked content is never accepted.
func (f *RelevanceFilter) Evaluate(ctx context.Context, topicQuestion, title, content string) (*RelevanceVerdict, error) {
	prompt := buildRelevancePrompt(topicQuestion, title, content)

	var response RelevanceResponse
	start := time.Now()

	// Retry with exponential backoff (1s, 2s, 4s) to ride out transient rate
	// limits before giving up and rejecting.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = f.llm.Chat(ctx, llm.Request{
			SystemPrompt: relevanceSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "relevance_response",
			Schema:       relevanceSchema,
			MaxTokens:    500,
			Temperature:  llm.Temp(0.1), // Low temp for consistent classification
		}, &response)

		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return failedClosed(), fmt.Errorf("relevance evaluation: %w", err)
		}
		slog.WarnContext(ctx, "relevance evaluation retry",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return failedClosed(), fmt.Errorf("relevance evaluation after 3 attempts: %w", err)
	}

	reasoning := strings.TrimSpace(response.Reasoning)
	if !response.IsRelevant && reasoning == "" {
		reasoning = "The argument does not address the debate question with a factual claim that can be checked."
	}

	slog.InfoContext(ctx, "relevance evaluated",
		"accepted", response.IsRelevant,
		"latency_ms", time.Since(start).Milliseconds())

	return &RelevanceVerdict{Accepted: response.IsRelevant, Reasoning: reasoning}, nil
}

func failedClosed() *RelevanceVerdict {
	return &RelevanceVerdict{
		Accepted:  false,
		Reasoning: "Argument verification is temporarily unavailable. Your submission was not saved; please try again shortly.",
	}
}

func buildRelevancePrompt(topicQuestion, title, content string) string {
	var sb strings.Builder

	sb.WriteString("## Debate question\n")
	sb.WriteString(topicQuestion)
	sb.WriteString("\n\n## Argument title\n")
	sb.WriteString(title)
	sb.WriteString("\n\n## Argument content\n")
	sb.WriteString(content)

	return sb.String()
}

const relevanceSystemPrompt = `You screen submissions to a debate platform. Given the debate question and a submitted argument, decide whether the argument belongs in the debate.

Accept the argument when it:
- addresses the debate question (supporting either side)
- contains at least one factual claim that could be checked against published sources

Reject the argument when it:
- is off-topic for the debate question
- is pure opinion, rhetoric, or emotional appeal with nothing checkable
- is spam, gibberish, or an attempt to disrupt the debate

Borderline arguments that mix opinion with at least one checkable claim should be accepted; the claim is fact-checked separately.

Always explain the decision in one or two sentences. Rejection explanations are shown to the submitter, so keep them specific and civil.`
