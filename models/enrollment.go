package models

import "time"

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "ACTIVE"
	EnrollmentWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment is a (competition, participant) pair. It is frozen once sessions are generated.
type Enrollment struct {
	ID            int              `json:"id" db:"id"`
	CompetitionID int              `json:"competition_id" db:"competition_id"`
	ParticipantID int              `json:"participant_id" db:"participant_id"`
	Status        EnrollmentStatus `json:"status" db:"status"`
	Seed          *int             `json:"seed,omitempty" db:"seed"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}
