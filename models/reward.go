package models

import (
	"fmt"
	"time"
)

// RewardCategory selects the ledger a reward transaction is written to.
type RewardCategory string

const (
	RewardCredit RewardCategory = "CREDIT"
	RewardXP     RewardCategory = "XP"
	RewardSkill  RewardCategory = "SKILL"
)

// RewardTransaction is one ledger row. At most one exists per
// (competition, participant, category[, skill]).
type RewardTransaction struct {
	ID             int            `json:"id" db:"id"`
	CompetitionID  int            `json:"competition_id" db:"competition_id"`
	ParticipantID  int            `json:"participant_id" db:"participant_id"`
	Category       RewardCategory `json:"category" db:"category"`
	SkillName      string         `json:"skill_name,omitempty" db:"skill_name"`
	Amount         int            `json:"amount" db:"amount"`
	Rank           int            `json:"rank" db:"rank"`
	IdempotencyKey string         `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// RewardIdempotencyKey builds the deterministic key for one reward row.
func RewardIdempotencyKey(competitionID, participantID int, category RewardCategory, skill string) string {
	key := fmt.Sprintf("comp:%d:participant:%d:%s", competitionID, participantID, category)
	if category == RewardSkill {
		key += ":" + skill
	}
	return key
}

type Badge string

const (
	BadgeChampion Badge = "CHAMPION"
	BadgePodium   Badge = "PODIUM"
)

// Achievement is a badge derived from a distribution pass.
type Achievement struct {
	ID            int       `json:"id" db:"id"`
	CompetitionID int       `json:"competition_id" db:"competition_id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	Badge         Badge     `json:"badge" db:"badge"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// RewardSummary is returned by a successful distribution.
type RewardSummary struct {
	CompetitionID        int       `json:"competition_id"`
	ParticipantsRewarded int       `json:"participants_rewarded"`
	TotalCredits         int       `json:"total_credits"`
	TotalXP              int       `json:"total_xp"`
	SkillRewards         int       `json:"skill_rewards"`
	Achievements         int       `json:"achievements"`
	DistributedAt        time.Time `json:"distributed_at"`
}
