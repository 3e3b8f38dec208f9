package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
)

// MatchFinalizedEvent is published after a result commits.
type MatchFinalizedEvent struct {
	Match         *models.Match `json:"match"`
	SessionsAdded int           `json:"sessions_added"`
	SlotsAdvanced int           `json:"slots_advanced"`
}

type ResultService interface {
	// SubmitResult records the one and only result of a match and advances the bracket.
	SubmitResult(ctx context.Context, matchID int, result *models.MatchResult) (*models.Match, error)
}

type resultService struct {
	store  repositories.Store
	events EventPublisher
	logger *slog.Logger
}

func NewResultService(store repositories.Store, events EventPublisher, logger *slog.Logger) ResultService {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultService{store: store, events: publisherOrNop(events), logger: logger}
}

func (s *resultService) SubmitResult(ctx context.Context, matchID int, result *models.MatchResult) (*models.Match, error) {
	// The competition row is the lock every writer of a competition takes first.
	peek, err := s.store.Repos().Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}

	var (
		finalized *models.Match
		event     MatchFinalizedEvent
	)
	err = s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, peek.CompetitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		m, err := r.Matches.GetForUpdate(ctx, matchID)
		if err != nil {
			return handleRepositoryError(err)
		}

		if err := requireStatus(c, ErrNotAcceptingResults, models.StatusInProgress); err != nil {
			return err
		}
		if m.Finalized {
			at := "unknown time"
			if m.FinalizedAt != nil {
				at = m.FinalizedAt.Format(time.RFC3339)
			}
			return fmt.Errorf("%w: match %d finalized at %s", ErrMatchAlreadyFinalized, m.ID, at)
		}
		if !m.Ready() {
			return fmt.Errorf("%w: match %d", ErrMatchNotReady, m.ID)
		}

		side, err := evaluateResult(c.ScoringMode, result)
		if err != nil {
			return err
		}
		if side == sideDraw && m.Stage.IsElimination(c.Format) {
			return fmt.Errorf("%w: draws are not allowed in %s matches", ErrInvalidResult, m.Stage)
		}

		now := utcNow()
		m.Result = result
		switch side {
		case side1:
			m.WinnerID = m.Participant1ID
		case side2:
			m.WinnerID = m.Participant2ID
		default:
			m.WinnerID = nil
		}
		m.Finalized = true
		m.FinalizedAt = &now
		if err := r.Matches.Update(ctx, m); err != nil {
			return handleRepositoryError(err)
		}

		advanced, err := advanceSlots(ctx, r, m)
		if err != nil {
			return err
		}
		added, err := s.generateNextStage(ctx, r, c, m, now)
		if err != nil {
			return err
		}

		finalized = m
		event = MatchFinalizedEvent{Match: m, SessionsAdded: added, SlotsAdvanced: advanced}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match finalized",
		slog.Int("competition_id", finalized.CompetitionID),
		slog.Int("match_id", finalized.ID),
		slog.Int("sessions_added", event.SessionsAdded))
	s.events.Publish(finalized.CompetitionID, brackets.EventMatchFinalized, event)
	return finalized, nil
}

// advanceSlots copies the winner (or loser) of m into every slot it feeds.
func advanceSlots(ctx context.Context, r repositories.Repos, m *models.Match) (int, error) {
	if m.WinnerID == nil {
		return 0, nil
	}
	dependents, err := r.Matches.ListBySource(ctx, m.CompetitionID, m.BracketUID)
	if err != nil {
		return 0, fmt.Errorf("list dependents of %s: %w", m.BracketUID, err)
	}

	pick := func(outcome models.SlotOutcome) *int {
		if outcome == models.OutcomeLoser {
			return m.LoserID()
		}
		winner := *m.WinnerID
		return &winner
	}

	advanced := 0
	for _, d := range dependents {
		if d.Source1UID != nil && *d.Source1UID == m.BracketUID {
			d.Participant1ID = pick(d.Source1Outcome)
			advanced++
		}
		if d.Source2UID != nil && *d.Source2UID == m.BracketUID {
			d.Participant2ID = pick(d.Source2Outcome)
			advanced++
		}
		if err := r.Matches.Update(ctx, d); err != nil {
			return 0, handleRepositoryError(err)
		}
	}
	return advanced, nil
}

// generateNextStage builds the knockout once the group stage is complete, or the next
// Swiss round once the current one is complete.
func (s *resultService) generateNextStage(ctx context.Context, r repositories.Repos, c *models.Competition, m *models.Match, now time.Time) (int, error) {
	if m.Stage != models.StageGroup && m.Stage != models.StageSwiss {
		return 0, nil
	}

	all, err := r.Matches.ListByCompetition(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("list sessions of competition %d: %w", c.ID, err)
	}

	var generated []*brackets.BracketMatch
	switch m.Stage {
	case models.StageGroup:
		for _, other := range all {
			if other.Stage == models.StageKnockout || (other.Stage == models.StageGroup && !other.Finalized) {
				return 0, nil
			}
		}
		tables := groupTables(c.ScoringMode, c.Config.Points, all)
		qualifiers := c.Config.QualifiersPerGroup
		if qualifiers == 0 {
			qualifiers = 2
		}
		generated, err = brackets.GenerateKnockout(tables, qualifiers, brackets.GroupRounds(tables, c.Config.Legs), c.Config.ThirdPlacePlayoff)
		if err != nil {
			return 0, mapBracketError(err)
		}

	case models.StageSwiss:
		for _, other := range all {
			if other.Stage != models.StageSwiss {
				continue
			}
			if other.Round > m.Round || (other.Round == m.Round && !other.Finalized) {
				return 0, nil
			}
		}
		enrollments, err := r.Enrollments.ListActive(ctx, c.ID)
		if err != nil {
			return 0, fmt.Errorf("list enrollments for competition %d: %w", c.ID, err)
		}
		participants := participantIDs(enrollments)
		if m.Round >= brackets.SwissRounds(len(participants), c.Config) {
			return 0, nil
		}
		standings, played := swissStandings(c.ScoringMode, c.Config.Points, participants, all)
		generated, err = brackets.NextSwissRound(m.Round+1, standings, played)
		if err != nil {
			return 0, mapBracketError(err)
		}
	}

	matches := materializeMatches(c.ID, generated, now)
	if err := r.Matches.CreateBatch(ctx, matches); err != nil {
		return 0, fmt.Errorf("persist next stage for competition %d: %w", c.ID, handleRepositoryError(err))
	}
	return len(matches), nil
}
