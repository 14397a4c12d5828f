package model

import (
	"fmt"
	"strings"
	"time"
)

// TranscriptLine is one message of a ticket channel's history.
type TranscriptLine struct {
	MessageID   string    `json:"id"`
	TimeStamp   time.Time `json:"created_at"`
	AuthorID    string    `json:"author_id"`
	User        string    `json:"user_name"`
	Bot         bool      `json:"bot"`
	Text        string    `json:"content"`
	Attachments []string  `json:"attachments,omitempty"`
}

// ClosureRecord is what gets announced when a ticket closes.
type ClosureRecord struct {
	Number        uint      `json:"number"`
	ChannelID     string    `json:"channel_id"`
	CreatorID     string    `json:"creator_id"`
	CloserID      string    `json:"closer_id"`
	Reason        string    `json:"reason"`
	CategoryPath  []string  `json:"category_path"`
	OpenedAt      time.Time `json:"opened_at"`
	ClosedAt      time.Time `json:"closed_at"`
	TranscriptURL string    `json:"transcript_url,omitempty"`
	Summary       string    `json:"summary,omitempty"`
}

func (c TranscriptLine) String() string {
	return fmt.Sprintf("time:%s author:%s content:%s", c.TimeStamp.Format(time.RFC3339), c.User, c.Text)
}

func (c ClosureRecord) String() string {
	return fmt.Sprintf("ticket:%04d creator:%s closer:%s reason:%s category:%s", c.Number, c.CreatorID, c.CloserID, c.Reason, strings.Join(c.CategoryPath, " > "))
}
