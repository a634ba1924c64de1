package model

import "time"

// ArgumentMatch pairs a pro argument with the con argument that most
// directly rebuts it. Matches for a topic are replaced wholesale on each
// matching run.
type ArgumentMatch struct {
	ID            int64     `json:"id"`
	TopicID       int64     `json:"topic_id"`
	ProArgumentID int64     `json:"pro_argument_id"`
	ConArgumentID int64     `json:"con_argument_id"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
