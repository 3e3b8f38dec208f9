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

// GenerateRequest asks for the sessions of one competition. Format and ScoringMode are
// optional; when given they must match the competition.
type GenerateRequest struct {
	CompetitionID    int                `json:"-"`
	Format           models.Format      `json:"format,omitempty"`
	ScoringMode      models.ScoringMode `json:"scoring_mode,omitempty"`
	ParticipantCount *int               `json:"participant_count,omitempty"`
}

// GenerationResult is the outcome of one generation pass.
type GenerationResult struct {
	CompetitionID int       `json:"competition_id"`
	SessionCount  int       `json:"session_count"`
	NoOp          bool      `json:"no_op"`
	GeneratedAt   time.Time `json:"generated_at"`
}

type GenerationService interface {
	// Precheck validates a request without a lock and returns the effective participant count.
	Precheck(ctx context.Context, req GenerateRequest) (int, error)
	// Generate creates and persists all initial sessions in one transaction.
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
}

type generationService struct {
	store     repositories.Store
	validator *RosterValidator
	events    EventPublisher
	logger    *slog.Logger
}

func NewGenerationService(store repositories.Store, validator *RosterValidator, events EventPublisher, logger *slog.Logger) GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &generationService{
		store:     store,
		validator: validator,
		events:    publisherOrNop(events),
		logger:    logger,
	}
}

func (s *generationService) Precheck(ctx context.Context, req GenerateRequest) (int, error) {
	repos := s.store.Repos()
	c, err := repos.Competitions.GetByID(ctx, req.CompetitionID)
	if err != nil {
		return 0, handleRepositoryError(err)
	}
	if err := checkRequestMatches(c, req); err != nil {
		return 0, err
	}
	enrolled, err := repos.Enrollments.CountActive(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("count enrollments for competition %d: %w", c.ID, err)
	}
	count := EffectiveCount(req.ParticipantCount, enrolled)
	if err := s.validator.Validate(c, count, enrolled); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *generationService) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	var result *GenerationResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, req.CompetitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := checkRequestMatches(c, req); err != nil {
			return err
		}

		enrollments, err := r.Enrollments.ListActive(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("list enrollments for competition %d: %w", c.ID, err)
		}
		count := EffectiveCount(req.ParticipantCount, len(enrollments))
		if err := s.validator.Validate(c, count, len(enrollments)); err != nil {
			return err
		}

		generator, err := brackets.NewGenerator(c.Format)
		if err != nil {
			return mapBracketError(err)
		}
		generated, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			CompetitionID: c.ID,
			Format:        c.Format,
			Scoring:       c.ScoringMode,
			Config:        generatorConfig(c),
			Participants:  participantIDs(enrollments),
		})
		if err != nil {
			return mapBracketError(err)
		}

		now := utcNow()
		matches := materializeMatches(c.ID, generated, now)
		if err := r.Matches.CreateBatch(ctx, matches); err != nil {
			return fmt.Errorf("persist %d sessions for competition %d: %w", len(matches), c.ID, handleRepositoryError(err))
		}

		if err := markSessionsGenerated(c, now); err != nil {
			return err
		}
		if err := r.Competitions.Update(ctx, c); err != nil {
			return handleRepositoryError(err)
		}

		result = &GenerationResult{CompetitionID: c.ID, SessionCount: len(matches), GeneratedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sessions generated",
		slog.Int("competition_id", result.CompetitionID),
		slog.Int("session_count", result.SessionCount))
	s.events.Publish(result.CompetitionID, brackets.EventSessionsGenerated, result)
	return result, nil
}

func checkRequestMatches(c *models.Competition, req GenerateRequest) error {
	if req.Format != "" && req.Format != c.Format {
		return fmt.Errorf("%w: competition %d is %s, request says %s", ErrFormatMismatch, c.ID, c.Format, req.Format)
	}
	if req.ScoringMode != "" && req.ScoringMode != c.ScoringMode {
		return fmt.Errorf("%w: competition %d scores %s, request says %s", ErrFormatMismatch, c.ID, c.ScoringMode, req.ScoringMode)
	}
	return nil
}

// generatorConfig returns the competition's snapshot with the Swiss seed defaulted
// to the competition ID, so reruns of the same competition pair identically.
func generatorConfig(c *models.Competition) models.CompetitionConfig {
	cfg := c.Config.Clone()
	if c.Format == models.FormatSwiss && cfg.Seed == 0 {
		cfg.Seed = int64(c.ID)
	}
	return cfg
}

// materializeMatches turns generated bracket entries into persistable sessions.
// Byes are stored already finalized as a win for the lone participant.
func materializeMatches(competitionID int, generated []*brackets.BracketMatch, now time.Time) []*models.Match {
	out := make([]*models.Match, 0, len(generated))
	for _, bm := range generated {
		m := &models.Match{
			CompetitionID:  competitionID,
			Stage:          bm.Stage,
			GroupIndex:     bm.GroupIndex,
			Round:          bm.Round,
			OrderInRound:   bm.OrderInRound,
			BracketUID:     bm.UID,
			Participant1ID: bm.Participant1ID,
			Participant2ID: bm.Participant2ID,
			Source1UID:     bm.Source1UID,
			Source1Outcome: bm.Source1Outcome,
			Source2UID:     bm.Source2UID,
			Source2Outcome: bm.Source2Outcome,
			IsBye:          bm.IsBye,
		}
		if bm.IsBye && bm.Participant1ID != nil {
			winner := *bm.Participant1ID
			at := now
			m.WinnerID = &winner
			m.Finalized = true
			m.FinalizedAt = &at
		}
		out = append(out, m)
	}
	return out
}

func mapBracketError(err error) error {
	switch {
	case errors.Is(err, brackets.ErrUnsupportedCombination):
		return fmt.Errorf("%w: %v", ErrUnsupportedCombination, err)
	case errors.Is(err, brackets.ErrUnknownFormat):
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	case errors.Is(err, brackets.ErrNotEnoughParticipants):
		return fmt.Errorf("%w: %v", ErrInvalidParticipantCount, err)
	case errors.Is(err, brackets.ErrDuplicateParticipant):
		return fmt.Errorf("%w: %v", ErrInvalidParticipant, err)
	case errors.Is(err, brackets.ErrInvalidGroupLayout):
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return err
}
