package models

import "time"

// CompetitionStatus is the lifecycle status of a competition.
type CompetitionStatus string

const (
	StatusDraft              CompetitionStatus = "DRAFT"
	StatusEnrolling          CompetitionStatus = "ENROLLING"
	StatusInProgress         CompetitionStatus = "IN_PROGRESS"
	StatusCompleted          CompetitionStatus = "COMPLETED"
	StatusRewardsDistributed CompetitionStatus = "REWARDS_DISTRIBUTED"
	StatusArchived           CompetitionStatus = "ARCHIVED"
)

func (s CompetitionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusEnrolling, StatusInProgress, StatusCompleted, StatusRewardsDistributed, StatusArchived:
		return true
	}
	return false
}

// Competition is one tournament instance.
type Competition struct {
	ID              int               `json:"id" db:"id"`
	Name            string            `json:"name" db:"name"`
	Format          Format            `json:"format" db:"format"`
	ScoringMode     ScoringMode       `json:"scoring_mode" db:"scoring_mode"`
	MinParticipants int               `json:"min_participants" db:"min_participants"`
	MaxParticipants int               `json:"max_participants" db:"max_participants"`
	Status          CompetitionStatus `json:"status" db:"status"`

	// SessionsGenerated flips false->true once and is never reset.
	SessionsGenerated    bool       `json:"sessions_generated" db:"sessions_generated"`
	SessionsGeneratedAt  *time.Time `json:"sessions_generated_at,omitempty" db:"sessions_generated_at"`
	RewardsDistributedAt *time.Time `json:"rewards_distributed_at,omitempty" db:"rewards_distributed_at"`
	ArchiveKey           *string    `json:"archive_key,omitempty" db:"archive_key"`

	Config CompetitionConfig `json:"config" db:"config"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

