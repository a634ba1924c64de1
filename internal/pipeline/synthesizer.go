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

type SynthesisResponse struct {
	OverallSummary string           `json:"overall_summary" jsonschema_description:"2-3 paragraphs: what the debate is about and its main themes"`
	ConsensusView  string           `json:"consensus_view" jsonschema_description:"1-2 paragraphs: what both sides agree on, or an explicit statement that they agree on nothing"`
	TimelineView   []TimelinePeriod `json:"timeline_view" jsonschema_description:"Chronological narrative built from the arguments, empty when the debate is not tied to a chronology"`
}

type TimelinePeriod struct {
	Period      string `json:"period" jsonschema_description:"The time period, such as a year range or era"`
	Description string `json:"description" jsonschema_description:"Short description of what happened in this period"`
}

var synthesisSchema = llm.GenerateSchema[SynthesisResponse]()

// Synthesis is the cross-argument view of a topic. InsufficientData marks the
// fixed result returned when a side has no arguments; it is produced without
// a reasoning call and is not meant to be persisted.
type Synthesis struct {
	OverallSummary   string
	ConsensusView    string
	Timeline         []model.TimelineEntry
	InsufficientData bool
}

type Synthesizer struct {
	llm llm.Client
}

func NewSynthesizer(client llm.Client) *Synthesizer {
	return &Synthesizer{llm: client}
}

// Synthesize produces the overall summary, consensus view, and timeline for
// a topic from its full argument set. Requires at least one argument on each
// side; otherwise the fixed insufficient-data result is returned immediately.
// The result replaces, never extends, any previously stored synthesis.
func (s *Synthesizer) Synthesize(ctx context.Context, topicQuestion string, pros, cons []model.Argument) (*Synthesis, error) {
	if len(pros) == 0 || len(cons) == 0 {
		return insufficientDataSynthesis(), nil
	}

	prompt := buildSynthesisPrompt(topicQuestion, pros, cons)

	var response SynthesisResponse
	start := time.Now()

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.llm.Chat(ctx, llm.Request{
			SystemPrompt: synthesisSystemPrompt,
			UserPrompt:   prompt,
			SchemaName:   "synthesis_response",
			Schema:       synthesisSchema,
			MaxTokens:    4096,
		}, &response)

		if err == nil && (strings.TrimSpace(response.OverallSummary) == "" || strings.TrimSpace(response.ConsensusView) == "") {
			err = fmt.Errorf("%w: empty summary or consensus view", llm.ErrMalformedOutput)
		}
		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return nil, fmt.Errorf("synthesizing topic: %w", err)
		}
		slog.WarnContext(ctx, "synthesis retry",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("synthesizing topic after 3 attempts: %w", err)
	}

	timeline := make([]model.TimelineEntry, len(response.TimelineView))
	for i, p := range response.TimelineView {
		timeline[i] = model.TimelineEntry{Period: p.Period, Description: p.Description}
	}

	slog.InfoContext(ctx, "synthesis generated",
		"pro_count", len(pros),
		"con_count", len(cons),
		"timeline_entries", len(timeline),
		"latency_ms", time.Since(start).Milliseconds())

	return &Synthesis{
		OverallSummary: response.OverallSummary,
		ConsensusView:  response.ConsensusView,
		Timeline:       timeline,
	}, nil
}

func insufficientDataSynthesis() *Synthesis {
	return &Synthesis{
		OverallSummary:   "This debate does not yet have arguments on both sides, so no summary can be generated.",
		ConsensusView:    "A consensus view requires at least one pro argument and one con argument.",
		Timeline:         []model.TimelineEntry{},
		InsufficientData: true,
	}
}

func buildSynthesisPrompt(topicQuestion string, pros, cons []model.Argument) string {
	var sb strings.Builder

	sb.WriteString("## Debate question\n")
	sb.WriteString(topicQuestion)

	sb.WriteString("\n\n## Pro arguments\n")
	writeTitledArguments(&sb, pros)

	sb.WriteString("\n## Con arguments\n")
	writeTitledArguments(&sb, cons)

	return sb.String()
}

func writeTitledArguments(sb *strings.Builder, args []model.Argument) {
	for _, a := range args {
		fmt.Fprintf(sb, "\nTitle: %s\nContent: %s\n", a.Title, logger.Truncate(a.Content, 1500))
	}
}

const synthesisSystemPrompt = `You are analyzing a debate. Generate three things from the arguments given (do NOT create new arguments, only synthesize existing ones):

1. OVERALL SUMMARY (2-3 paragraphs): What is this debate about? What are its main themes?
2. CONSENSUS VIEW (1-2 paragraphs): What do both sides agree on? When the sides agree on nothing, say so explicitly.
3. TIMELINE VIEW: A chronological narrative based on the arguments, as an array of period/description entries. Leave it empty when the debate is not tied to a chronology.

Stay neutral and cover the strongest points of both sides.`
