package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

// RewardPlan is everything one distribution pass writes.
type RewardPlan struct {
	Transactions []*models.RewardTransaction
	Achievements []*models.Achievement
	Summary      models.RewardSummary
}

// SkillDelta is round(base * weight * multiplier(rank/n)) for one tested skill.
func SkillDelta(cfg models.CompetitionConfig, skill string, rank, n int) int {
	weight := cfg.SkillWeights[skill]
	return int(math.Round(cfg.SkillBasePoints * weight * cfg.BandMultiplier(rank, n)))
}

// ValidateSkillDelta accepts any non-zero delta, negative ones included.
func ValidateSkillDelta(skill string, delta int) error {
	if delta == 0 {
		return fmt.Errorf("%w: skill %q", ErrInvalidSkillDelta, skill)
	}
	return nil
}

// PlanRewards derives the reward rows from a resolved ranking. Ranks must be exactly
// 1..n with no repeats.
func PlanRewards(c *models.Competition, rankings []*models.Ranking, now time.Time) (*RewardPlan, error) {
	n := len(rankings)
	if n == 0 {
		return nil, ErrRankingsNotFound
	}
	ordered := append([]*models.Ranking(nil), rankings...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })
	for i, rk := range ordered {
		if rk.Rank != i+1 {
			return nil, fmt.Errorf("%w: expected rank %d, found %d for participant %d", ErrUnresolvedTies, i+1, rk.Rank, rk.ParticipantID)
		}
	}

	cfg := c.Config
	plan := &RewardPlan{Summary: models.RewardSummary{CompetitionID: c.ID, DistributedAt: now}}
	add := func(rk *models.Ranking, category models.RewardCategory, skill string, amount int) {
		plan.Transactions = append(plan.Transactions, &models.RewardTransaction{
			CompetitionID:  c.ID,
			ParticipantID:  rk.ParticipantID,
			Category:       category,
			SkillName:      skill,
			Amount:         amount,
			Rank:           rk.Rank,
			IdempotencyKey: models.RewardIdempotencyKey(c.ID, rk.ParticipantID, category, skill),
			CreatedAt:      now,
		})
	}

	for _, rk := range ordered {
		tier, hasTier := cfg.RewardTable.TierFor(rk.Rank)

		credits := cfg.RewardTable.ParticipationCredits
		if hasTier {
			credits = tier.Credits
		}
		if credits != 0 {
			add(rk, models.RewardCredit, "", credits)
			plan.Summary.TotalCredits += credits
		}

		xp := cfg.RewardTable.BaseXP + tier.BonusXP
		if xp != 0 {
			add(rk, models.RewardXP, "", xp)
			plan.Summary.TotalXP += xp
		}

		for _, skill := range cfg.SkillsTested {
			delta := SkillDelta(cfg, skill, rk.Rank, n)
			if delta == 0 {
				continue
			}
			if err := ValidateSkillDelta(skill, delta); err != nil {
				return nil, err
			}
			add(rk, models.RewardSkill, skill, delta)
			plan.Summary.SkillRewards++
		}

		if rk.Rank == 1 {
			plan.Achievements = append(plan.Achievements, &models.Achievement{
				CompetitionID: c.ID, ParticipantID: rk.ParticipantID, Badge: models.BadgeChampion, CreatedAt: now,
			})
		}
		if rk.Rank <= 3 {
			plan.Achievements = append(plan.Achievements, &models.Achievement{
				CompetitionID: c.ID, ParticipantID: rk.ParticipantID, Badge: models.BadgePodium, CreatedAt: now,
			})
		}
	}

	plan.Summary.ParticipantsRewarded = n
	plan.Summary.Achievements = len(plan.Achievements)
	return plan, nil
}
