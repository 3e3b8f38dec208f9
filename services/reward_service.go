package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
)

// CompetitionRewards lists what a distribution wrote.
type CompetitionRewards struct {
	Transactions []*models.RewardTransaction `json:"transactions"`
	Achievements []*models.Achievement       `json:"achievements"`
}

type RewardService interface {
	// DistributeRewards writes every reward of a completed competition in one transaction.
	// It succeeds at most once per competition.
	DistributeRewards(ctx context.Context, competitionID int) (*models.RewardSummary, error)
	ListRewards(ctx context.Context, competitionID int) (*CompetitionRewards, error)
}

type rewardService struct {
	store  repositories.Store
	events EventPublisher
	logger *slog.Logger
}

func NewRewardService(store repositories.Store, events EventPublisher, logger *slog.Logger) RewardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &rewardService{store: store, events: publisherOrNop(events), logger: logger}
}

func (s *rewardService) DistributeRewards(ctx context.Context, competitionID int) (*models.RewardSummary, error) {
	var summary models.RewardSummary

	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, competitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		switch c.Status {
		case models.StatusRewardsDistributed, models.StatusArchived:
			at := "unknown time"
			if c.RewardsDistributedAt != nil {
				at = c.RewardsDistributedAt.Format(time.RFC3339)
			}
			return fmt.Errorf("%w: competition %d at %s", ErrRewardsAlreadyDistributed, c.ID, at)
		case models.StatusCompleted:
		default:
			return requireStatus(c, ErrRewardsNotReady, models.StatusCompleted)
		}

		now := utcNow()
		if err := transition(c, models.StatusRewardsDistributed, now); err != nil {
			return err
		}
		c.RewardsDistributedAt = &now
		if err := r.Competitions.Update(ctx, c); err != nil {
			return handleRepositoryError(err)
		}

		rankings, err := r.Rankings.ListByCompetition(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list rankings of competition %d: %w", c.ID, err)
		}
		plan, err := PlanRewards(c, rankings, now)
		if err != nil {
			return err
		}

		for _, t := range plan.Transactions {
			if err := r.Rewards.CreateTransaction(ctx, t); err != nil {
				if errors.Is(err, repositories.ErrUniqueViolation) {
					return fmt.Errorf("%w: %s", ErrDuplicateReward, t.IdempotencyKey)
				}
				return fmt.Errorf("write reward %s: %w", t.IdempotencyKey, err)
			}
		}
		for _, a := range plan.Achievements {
			if err := r.Rewards.CreateAchievement(ctx, a); err != nil {
				return fmt.Errorf("award %s to participant %d: %w", a.Badge, a.ParticipantID, handleRepositoryError(err))
			}
		}

		summary = plan.Summary
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rewards distributed",
		slog.Int("competition_id", competitionID),
		slog.Int("participants", summary.ParticipantsRewarded),
		slog.Int("credits", summary.TotalCredits),
		slog.Int("xp", summary.TotalXP))
	s.events.Publish(competitionID, brackets.EventRewardsDistributed, summary)
	return &summary, nil
}

func (s *rewardService) ListRewards(ctx context.Context, competitionID int) (*CompetitionRewards, error) {
	repos := s.store.Repos()
	if _, err := repos.Competitions.GetByID(ctx, competitionID); err != nil {
		return nil, handleRepositoryError(err)
	}
	transactions, err := repos.Rewards.ListTransactions(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list rewards of competition %d: %w", competitionID, err)
	}
	achievements, err := repos.Rewards.ListAchievements(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list achievements of competition %d: %w", competitionID, err)
	}
	if transactions == nil {
		transactions = []*models.RewardTransaction{}
	}
	if achievements == nil {
		achievements = []*models.Achievement{}
	}
	return &CompetitionRewards{Transactions: transactions, Achievements: achievements}, nil
}
