package model

import "time"

type TaskKind string

const (
	// TaskAutoclose is scheduled by staff and canceled by creator activity.
	TaskAutoclose TaskKind = "autoclose"
	// TaskSelect closes a ticket whose category menu went unanswered.
	TaskSelect TaskKind = "select"
	// TaskQuestion closes a ticket whose current question went unanswered.
	TaskQuestion TaskKind = "question"
)

var TaskKinds = []TaskKind{TaskAutoclose, TaskSelect, TaskQuestion}

// AutocloseTask is a pending forced close; at most one per channel and kind.
type AutocloseTask struct {
	ChannelID string   `gorm:"type:varchar(50);primary_key"`
	Kind      TaskKind `gorm:"type:varchar(20);primary_key"`
	FireAt    time.Time
	Reason    string `gorm:"type:text"`
	ActorID   string `gorm:"type:varchar(50)"`
	CreatedAt time.Time
}
