package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
)

type RankingService interface {
	// CalculateRankings recomputes and replaces the full ranking set of a competition.
	CalculateRankings(ctx context.Context, competitionID int) ([]*models.Ranking, error)
	GetRankings(ctx context.Context, competitionID int) ([]*models.Ranking, error)
}

type rankingService struct {
	store  repositories.Store
	events EventPublisher
	logger *slog.Logger
}

func NewRankingService(store repositories.Store, events EventPublisher, logger *slog.Logger) RankingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &rankingService{store: store, events: publisherOrNop(events), logger: logger}
}

func (s *rankingService) CalculateRankings(ctx context.Context, competitionID int) ([]*models.Ranking, error) {
	var rankings []*models.Ranking

	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, competitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if c.Status == models.StatusRewardsDistributed || c.Status == models.StatusArchived {
			return fmt.Errorf("%w: competition %d is %s", ErrRankingsFrozen, c.ID, c.Status)
		}
		if err := requireStatus(c, ErrState, models.StatusInProgress, models.StatusCompleted); err != nil {
			return err
		}

		matches, err := r.Matches.ListByCompetition(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list sessions of competition %d: %w", c.ID, err)
		}
		enrollments, err := r.Enrollments.ListActive(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list enrollments for competition %d: %w", c.ID, err)
		}
		participants := participantIDs(enrollments)
		if err := checkComplete(c, participants, matches); err != nil {
			return err
		}

		now := utcNow()
		rankings = ComputeRankings(c, participants, matches, now)
		if err := r.Rankings.ReplaceAll(ctx, c.ID, rankings); err != nil {
			return fmt.Errorf("replace rankings of competition %d: %w", c.ID, handleRepositoryError(err))
		}

		if c.Status == models.StatusInProgress {
			if err := transition(c, models.StatusCompleted, now); err != nil {
				return err
			}
			if err := r.Competitions.Update(ctx, c); err != nil {
				return handleRepositoryError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("rankings calculated",
		slog.Int("competition_id", competitionID),
		slog.Int("participants", len(rankings)))
	s.events.Publish(competitionID, brackets.EventRankingsUpdated, rankings)
	return rankings, nil
}

func (s *rankingService) GetRankings(ctx context.Context, competitionID int) ([]*models.Ranking, error) {
	repos := s.store.Repos()
	rankings, err := repos.Rankings.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list rankings of competition %d: %w", competitionID, err)
	}
	if len(rankings) == 0 {
		if _, err := repos.Competitions.GetByID(ctx, competitionID); err != nil {
			return nil, handleRepositoryError(err)
		}
		return nil, ErrRankingsNotFound
	}
	return rankings, nil
}

// checkComplete requires every stage to exist and every session to be finalized.
func checkComplete(c *models.Competition, participants []int, matches []*models.Match) error {
	if !c.SessionsGenerated || len(matches) == 0 {
		return fmt.Errorf("%w: competition %d has no sessions", ErrResultsIncomplete, c.ID)
	}
	open := 0
	maxSwissRound := 0
	hasKnockout := false
	for _, m := range matches {
		if !m.Finalized {
			open++
		}
		if m.Stage == models.StageSwiss && m.Round > maxSwissRound {
			maxSwissRound = m.Round
		}
		if m.Stage == models.StageKnockout {
			hasKnockout = true
		}
	}
	if open > 0 {
		return fmt.Errorf("%w: %d of %d sessions are not finalized", ErrResultsIncomplete, open, len(matches))
	}

	switch c.Format {
	case models.FormatGroupKnockout:
		if !hasKnockout {
			return fmt.Errorf("%w: knockout stage has not been generated", ErrResultsIncomplete)
		}
	case models.FormatSwiss:
		if want := brackets.SwissRounds(len(participants), c.Config); maxSwissRound < want {
			return fmt.Errorf("%w: %d of %d swiss rounds played", ErrResultsIncomplete, maxSwissRound, want)
		}
	}
	return nil
}
