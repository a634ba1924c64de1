package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"agora.app/verdict/common/llm"
	"agora.app/verdict/common/logger"
	"agora.app/verdict/common/search"
)

type ClaimResponse struct {
	Checkable bool   `json:"checkable" jsonschema_description:"Whether the argument contains a factual claim that can be checked against published sources"`
	Claim     string `json:"claim" jsonschema_description:"The core factual claim in 2 sentences or less, stripped of opinion and rhetoric"`
	Reason    string `json:"reason" jsonschema_description:"Why the argument cannot be checked, when checkable is false"`
}

type ScoreResponse struct {
	ValidityScore int    `json:"validity_score" jsonschema:"minimum=1,maximum=5" jsonschema_description:"Validity score from 1 (contradicted or unsupported) to 5 (strongly corroborated)"`
	Reasoning     string `json:"reasoning" jsonschema_description:"Two or three sentences explaining the score"`
}

var (
	claimSchema = llm.GenerateSchema[ClaimResponse]()
	scoreSchema = llm.GenerateSchema[ScoreResponse]()
)

// Verdict is the fact-checker's result for one argument. A nil Score means
// the argument carried no checkable claim; Reasoning still explains why.
// SearchDegraded records that evidence search was unavailable and scoring ran
// on an empty evidence set.
type Verdict struct {
	Score          *int32
	Reasoning      string
	KeyURLs        []string
	SourceCount    int
	SearchDegraded bool
}

const (
	// Sources at or below this relevance are discarded before scoring.
	minSourceRelevance = 0.5
	maxKeyURLs         = 5
	searchRetryBackoff = 2 * time.Second
)

// EvidenceSearcher is satisfied by *search.Client.
type EvidenceSearcher interface {
	Search(ctx context.Context, query string) ([]search.Source, error)
}

type FactChecker struct {
	llm    llm.Client
	search EvidenceSearcher
}

func NewFactChecker(client llm.Client, searcher EvidenceSearcher) *FactChecker {
	return &FactChecker{llm: client, search: searcher}
}

// Verify runs the three-stage pipeline for one argument: claim extraction,
// evidence search, scoring. Each call searches fresh evidence, so repeating
// it on the same argument always yields a complete verdict but not
// necessarily the same one. An error means no verdict was produced and the
// caller must leave any prior validity record untouched.
func (c *FactChecker) Verify(ctx context.Context, title, content string) (*Verdict, error) {
	start := time.Now()

	claim, err := c.extractClaim(ctx, title, content)
	if err != nil {
		return nil, err
	}
	if !claim.Checkable {
		reason := strings.TrimSpace(claim.Reason)
		if reason == "" {
			reason = "The argument contains no factual claim that can be checked against published sources."
		}
		slog.InfoContext(ctx, "argument has no checkable claim",
			"latency_ms", time.Since(start).Milliseconds())
		return &Verdict{Reasoning: reason, KeyURLs: []string{}}, nil
	}

	sources, degraded, err := c.searchEvidence(ctx, claim.Claim)
	if err != nil {
		return nil, err
	}

	score, err := c.scoreClaim(ctx, claim.Claim, sources, degraded)
	if err != nil {
		return nil, err
	}

	value := int32(score.ValidityScore)
	verdict := &Verdict{
		Score:          &value,
		Reasoning:      score.Reasoning,
		KeyURLs:        keyURLs(sources),
		SourceCount:    len(sources),
		SearchDegraded: degraded,
	}

	slog.InfoContext(ctx, "argument verified",
		"score", score.ValidityScore,
		"source_count", len(sources),
		"search_degraded", degraded,
		"latency_ms", time.Since(start).Milliseconds())

	return verdict, nil
}

func (c *FactChecker) extractClaim(ctx context.Context, title, content string) (*ClaimResponse, error) {
	var response ClaimResponse

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = c.llm.Chat(ctx, llm.Request{
			SystemPrompt: claimSystemPrompt,
			UserPrompt:   buildClaimPrompt(title, content),
			SchemaName:   "claim_response",
			Schema:       claimSchema,
			MaxTokens:    300,
			Temperature:  llm.Temp(0.1), // Low temp for consistent extraction
		}, &response)

		if err == nil && response.Checkable && strings.TrimSpace(response.Claim) == "" {
			err = fmt.Errorf("%w: checkable flag set with empty claim", llm.ErrMalformedOutput)
		}
		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return nil, fmt.Errorf("claim extraction: %w", err)
		}
		slog.WarnContext(ctx, "claim extraction retry",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("claim extraction after 3 attempts: %w", err)
	}

	return &response, nil
}

// searchEvidence queries for the claim and keeps sources above the relevance
// cutoff. Search failure is retried once with backoff, then degrades to an
// empty evidence set rather than failing the verification. The returned error
// is non-nil only for caller cancellation.
func (c *FactChecker) searchEvidence(ctx context.Context, claim string) ([]search.Source, bool, error) {
	results, err := c.search.Search(ctx, claim)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		slog.WarnContext(ctx, "evidence search failed, retrying once", "error", err)
		time.Sleep(searchRetryBackoff)
		results, err = c.search.Search(ctx, claim)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		slog.WarnContext(ctx, "evidence search failed after retry, scoring with empty evidence",
			"error", err)
		return nil, true, nil
	}

	kept := filterSources(results)

	slog.DebugContext(ctx, "evidence collected",
		"found", len(results),
		"kept", len(kept))

	return kept, false, nil
}

func (c *FactChecker) scoreClaim(ctx context.Context, claim string, sources []search.Source, degraded bool) (*ScoreResponse, error) {
	var response ScoreResponse

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		_, err = c.llm.Chat(ctx, llm.Request{
			SystemPrompt: scoreSystemPrompt,
			UserPrompt:   buildScorePrompt(claim, sources, degraded),
			SchemaName:   "score_response",
			Schema:       scoreSchema,
			MaxTokens:    1000,
			Temperature:  llm.Temp(0.1),
		}, &response)

		if err == nil && (response.ValidityScore < 1 || response.ValidityScore > 5) {
			err = fmt.Errorf("%w: validity score %d out of range", llm.ErrMalformedOutput, response.ValidityScore)
		}
		if err == nil {
			break
		}
		if !llm.IsRetryable(ctx, err) {
			return nil, fmt.Errorf("scoring claim: %w", err)
		}
		slog.WarnContext(ctx, "claim scoring retry",
			"attempt", attempt+1,
			"error", err)
		time.Sleep(time.Duration(1<<attempt) * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("scoring claim after 3 attempts: %w", err)
	}

	return &response, nil
}

// filterSources keeps results with relevance strictly above the cutoff,
// ordered by descending relevance.
func filterSources(results []search.Source) []search.Source {
	kept := make([]search.Source, 0, len(results))
	for _, s := range results {
		if s.Relevance > minSourceRelevance {
			kept = append(kept, s)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Relevance > kept[j].Relevance
	})

	return kept
}

// keyURLs picks up to 5 source URLs, one per domain, in the order the
// relevance-sorted sources already have. The first URL seen for a domain wins.
func keyURLs(sources []search.Source) []string {
	seen := make(map[string]struct{}, len(sources))
	urls := make([]string, 0, maxKeyURLs)

	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		domain := domainOf(s.URL)
		if _, ok := seen[domain]; ok {
			continue
		}
		seen[domain] = struct{}{}
		urls = append(urls, s.URL)
		if len(urls) == maxKeyURLs {
			break
		}
	}

	return urls
}

func domainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		// Unparseable URLs still dedupe against themselves
		return strings.ToLower(raw)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func avgRelevance(sources []search.Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.Relevance
	}
	return sum / float64(len(sources))
}

func buildClaimPrompt(title, content string) string {
	var sb strings.Builder

	sb.WriteString("Title: ")
	sb.WriteString(title)
	sb.WriteString("\nContent: ")
	sb.WriteString(content)

	return sb.String()
}

func buildScorePrompt(claim string, sources []search.Source, degraded bool) string {
	var sb strings.Builder

	sb.WriteString("## Claim\n")
	sb.WriteString(claim)
	sb.WriteString("\n\n## Search results\n")

	switch {
	case len(sources) == 0 && degraded:
		sb.WriteString("Evidence search was unavailable; no sources could be retrieved.\n")
	case len(sources) == 0:
		sb.WriteString("No sources found.\n")
	default:
		for i, s := range sources {
			fmt.Fprintf(&sb, "\nSource %d:\nTitle: %s\nURL: %s\nRelevance score: %.3f\nContent: %s\n",
				i+1, s.Title, s.URL, s.Relevance, logger.Truncate(s.Snippet, 500))
		}
	}

	fmt.Fprintf(&sb, "\nAverage relevance score of sources: %.3f\n", avgRelevance(sources))
	fmt.Fprintf(&sb, "Number of sources found: %d\n", len(sources))

	return sb.String()
}

const claimSystemPrompt = `Extract the core verifiable claim from a debate argument. Focus on factual statements that can be researched and verified, not opinions or rhetoric.

Return the core factual claim in 2 sentences or less. Remove all opinion, rhetoric, and emotional language. Keep only what can be factually verified.

If the argument contains no factual claim that could be checked against published sources, set checkable to false and explain why in the reason field.`

const scoreSystemPrompt = `You are a fact-checker analyzing the validity of a claim based on web search results.

Analyze the evidence and assign a validity score from 1-5 stars using these criteria:

- 5 stars: Fully supported by multiple high-quality sources (average relevance score > 0.8)
- 4 stars: Mostly supported with good sources (average relevance score > 0.6)
- 3 stars: Partially supported, mixed evidence
- 2 stars: Mostly unsupported or low-quality sources
- 1 star: No credible evidence or contradicted by sources

Consider BOTH the number of sources AND their quality (relevance scores).

When the search results section says no sources were found, the score must reflect the absence of corroborating evidence and the reasoning must state that no sources were found. When it says evidence search was unavailable, say that instead; do not imply the claim itself lacks support.

Explain the score in two or three sentences. Never refer to sources that are not in the search results.`
