package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// TicketPhase is the conversational step of an open ticket.
type TicketPhase string

const (
	PhaseSelecting TicketPhase = "selecting"
	PhaseAnswering TicketPhase = "answering"
	PhaseFinalized TicketPhase = "finalized"
	// PhaseHalted is reached when the category tree no longer matches the
	// ticket; staff got access and the automated flow stopped.
	PhaseHalted TicketPhase = "halted"
)

type Ticket struct {
	ChannelID       string       `gorm:"type:varchar(50);primary_key"`
	Number          uint         `gorm:"unique_index"`
	GuildID         string       `gorm:"type:varchar(50);index"`
	CreatorID       string       `gorm:"type:varchar(50);index"`
	Status          TicketStatus `gorm:"type:varchar(10);index"`
	Phase           TicketPhase  `gorm:"type:varchar(20)"`
	CategoryPath    StringList   `gorm:"type:text"`
	Questions       StringList   `gorm:"type:text"`
	Answers         AnswerList   `gorm:"type:text"`
	Participants    StringList   `gorm:"type:text"` // users added with the add command
	AssignedTo      string       `gorm:"type:varchar(50)"`
	PromptMessageID string       `gorm:"type:varchar(50)"` // current select menu or question
	StaffThreadID   string       `gorm:"type:varchar(50)"`
	CreatedAt       time.Time
	FinalizedAt     *time.Time
	ClosedAt        *time.Time
	ClosedBy        string `gorm:"type:varchar(50)"`
	CloseReason     string `gorm:"type:text"`
}

func (t *Ticket) ChannelName() string {
	return fmt.Sprintf("ticket-%04d", t.Number)
}

func (t *Ticket) IsOpen() bool {
	return t.Status == TicketOpen
}

func (t *Ticket) HasParticipant(userID string) bool {
	for _, p := range t.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// NextQuestion returns the question awaiting an answer, if any.
func (t *Ticket) NextQuestion() (string, bool) {
	if len(t.Answers) >= len(t.Questions) {
		return "", false
	}
	return t.Questions[len(t.Answers)], true
}

// TicketSequence hands out ticket numbers; its auto-increment id is the number.
type TicketSequence struct {
	ID        uint   `gorm:"primary_key"`
	GuildID   string `gorm:"type:varchar(50)"`
	CreatedAt time.Time
}

type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StringList is stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	b, err := scanBytes(src)
	if err != nil || b == nil {
		*l = StringList{}
		return err
	}
	var v []string
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	if v == nil {
		v = []string{}
	}
	*l = v
	return nil
}

// AnswerList is stored as a JSON array of {question, answer}.
type AnswerList []Answer

func (l AnswerList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Answer(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *AnswerList) Scan(src interface{}) error {
	b, err := scanBytes(src)
	if err != nil || b == nil {
		*l = AnswerList{}
		return err
	}
	var v []Answer
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("failed to decode answer list: %w", err)
	}
	if v == nil {
		v = []Answer{}
	}
	*l = v
	return nil
}

func scanBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
