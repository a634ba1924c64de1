package model

import "time"

// TimelineEntry is one period of the synthesized debate timeline.
type TimelineEntry struct {
	Period      string `json:"period"`
	Description string `json:"description"`
}

type Topic struct {
	ID             int64           `json:"id"`
	Question       string          `json:"question"`
	Slug           string          `json:"slug"`
	CreatedBy      string          `json:"created_by,omitempty"`
	OverallSummary *string         `json:"overall_summary,omitempty"`
	ConsensusView  *string         `json:"consensus_view,omitempty"`
	TimelineView   []TimelineEntry `json:"timeline_view,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Synthesized reports whether the topic carries a persisted synthesis.
func (t Topic) Synthesized() bool {
	return t.OverallSummary != nil
}
