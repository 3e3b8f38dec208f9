package models

import "time"

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
)

// Terminal reports whether the task will not be picked up again.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailed
}

// GenerationTask tracks one queued session generation for a competition.
type GenerationTask struct {
	ID            string     `json:"id" db:"id"`
	CompetitionID int        `json:"competition_id" db:"competition_id"`
	Status        TaskStatus `json:"status" db:"status"`
	Attempts      int        `json:"attempts" db:"attempts"`
	SessionCount  int        `json:"session_count" db:"session_count"`
	NoOp          bool       `json:"no_op" db:"no_op"`
	LastError     *string    `json:"last_error,omitempty" db:"last_error"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
