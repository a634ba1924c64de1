package model

import (
	"sort"
	"time"
)

type Side string

const (
	SidePro Side = "pro"
	SideCon Side = "con"
)

// Valid reports whether s is one of the two debate sides.
func (s Side) Valid() bool {
	return s == SidePro || s == SideCon
}

// Opposite returns the other debate side.
func (s Side) Opposite() Side {
	if s == SidePro {
		return SideCon
	}
	return SidePro
}

type Argument struct {
	ID                int64      `json:"id"`
	TopicID           int64      `json:"topic_id"`
	Side              Side       `json:"side"`
	Title             string     `json:"title"`
	Content           string     `json:"content"`
	Sources           string     `json:"sources,omitempty"`
	Author            string     `json:"author,omitempty"`
	Votes             int32      `json:"votes"`
	ValidityScore     *int32     `json:"validity_score,omitempty"`
	ValidityReasoning *string    `json:"validity_reasoning,omitempty"`
	ValidityCheckedAt *time.Time `json:"validity_checked_at,omitempty"`
	KeyURLs           []string   `json:"key_urls,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Verified reports whether the argument carries a persisted validity check.
// Arguments whose claim was not checkable stay unverified and are picked up
// again by the next bulk run.
func (a Argument) Verified() bool {
	return a.ValidityCheckedAt != nil
}

// SortByValidity orders arguments for display: validity_score descending,
// unscored arguments last, ties broken by earlier creation.
func SortByValidity(args []Argument) {
	sort.SliceStable(args, func(i, j int) bool {
		si, sj := args[i].ValidityScore, args[j].ValidityScore
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si > *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return args[i].CreatedAt.Before(args[j].CreatedAt)
	})
}
