package models

import "time"

// Ranking is one participant's computed standing. The set for a competition is
// replaced as a whole on every recalculation.
type Ranking struct {
	ID              int       `json:"id" db:"id"`
	CompetitionID   int       `json:"competition_id" db:"competition_id"`
	ParticipantID   int       `json:"participant_id" db:"participant_id"`
	Rank            int       `json:"rank" db:"rank"`
	Points          int       `json:"points" db:"points"`
	Wins            int       `json:"wins" db:"wins"`
	Draws           int       `json:"draws" db:"draws"`
	Losses          int       `json:"losses" db:"losses"`
	ScoreFor        float64   `json:"score_for" db:"score_for"`
	ScoreAgainst    float64   `json:"score_against" db:"score_against"`
	ScoreDifference float64   `json:"score_difference" db:"score_difference"`
	Buchholz        int       `json:"buchholz" db:"buchholz"`
	Tied            bool      `json:"tied" db:"tied"`
	ComputedAt      time.Time `json:"computed_at" db:"computed_at"`
}
