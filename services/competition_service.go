package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
	"github.com/football-investment/practice-booking-system-sub003/storage"
)

// EngineDefaults is what a new competition's config snapshot is copied from.
type EngineDefaults struct {
	Config models.CompetitionConfig
	// RewardTables overrides Config.RewardTable per format.
	RewardTables map[models.Format]models.RewardTable
}

func DefaultEngineDefaults() EngineDefaults {
	return EngineDefaults{Config: models.DefaultCompetitionConfig()}
}

// Snapshot returns a private copy of the defaults for format.
func (d EngineDefaults) Snapshot(format models.Format) models.CompetitionConfig {
	cfg := d.Config.Clone()
	if table, ok := d.RewardTables[format]; ok {
		cfg.RewardTable = table
		cfg.RewardTable.Tiers = append([]models.RewardTier(nil), table.Tiers...)
	}
	cfg.Version = models.CurrentConfigVersion
	return cfg
}

// CompetitionOptions are the per-competition format knobs a caller may set at creation.
type CompetitionOptions struct {
	ThirdPlacePlayoff  *bool  `json:"third_place_playoff,omitempty"`
	Legs               *int   `json:"legs,omitempty"`
	GroupCount         *int   `json:"group_count,omitempty"`
	QualifiersPerGroup *int   `json:"qualifiers_per_group,omitempty"`
	SwissRounds        *int   `json:"swiss_rounds,omitempty"`
	Seed               *int64 `json:"seed,omitempty"`
}

type CreateCompetitionInput struct {
	Name            string              `json:"name"`
	Format          models.Format       `json:"format"`
	ScoringMode     models.ScoringMode  `json:"scoring_mode"`
	MinParticipants int                 `json:"min_participants"`
	MaxParticipants int                 `json:"max_participants"`
	Options         *CompetitionOptions `json:"options,omitempty"`
}

type CompetitionService interface {
	Create(ctx context.Context, input CreateCompetitionInput) (*models.Competition, error)
	Get(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]*models.Competition, error)
	OpenEnrollment(ctx context.Context, id int) (*models.Competition, error)
	Enroll(ctx context.Context, competitionID, participantID int, seed *int) (*models.Enrollment, error)
	Withdraw(ctx context.Context, competitionID, participantID int) (*models.Enrollment, error)
	ListEnrollments(ctx context.Context, competitionID int) ([]*models.Enrollment, error)
	ListMatches(ctx context.Context, competitionID int) ([]*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	// Archive uploads a final snapshot and moves the competition to ARCHIVED.
	Archive(ctx context.Context, id int) (*models.Competition, error)
}

type competitionService struct {
	store     repositories.Store
	archive   storage.ArchiveStore
	validator *RosterValidator
	defaults  EngineDefaults
	events    EventPublisher
	logger    *slog.Logger
}

func NewCompetitionService(
	store repositories.Store,
	archive storage.ArchiveStore,
	validator *RosterValidator,
	defaults EngineDefaults,
	events EventPublisher,
	logger *slog.Logger,
) CompetitionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &competitionService{
		store:     store,
		archive:   archive,
		validator: validator,
		defaults:  defaults,
		events:    publisherOrNop(events),
		logger:    logger,
	}
}

func (s *competitionService) Create(ctx context.Context, input CreateCompetitionInput) (*models.Competition, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrCompetitionNameRequired
	}
	if err := s.validator.CheckCombination(input.Format, input.ScoringMode); err != nil {
		return nil, err
	}

	formatMin, formatMax := brackets.ParticipantBounds(input.Format)
	min, max := input.MinParticipants, input.MaxParticipants
	if min == 0 {
		min = formatMin
	}
	if max == 0 {
		max = formatMax
	}
	if min < formatMin || max > formatMax || min > max {
		return nil, fmt.Errorf("%w: [%d, %d] must lie within [%d, %d] for %s", ErrInvalidCapacity, min, max, formatMin, formatMax, input.Format)
	}

	cfg := s.defaults.Snapshot(input.Format)
	if o := input.Options; o != nil {
		if o.ThirdPlacePlayoff != nil {
			cfg.ThirdPlacePlayoff = *o.ThirdPlacePlayoff
		}
		if o.Legs != nil {
			cfg.Legs = *o.Legs
		}
		if o.GroupCount != nil {
			cfg.GroupCount = *o.GroupCount
		}
		if o.QualifiersPerGroup != nil {
			cfg.QualifiersPerGroup = *o.QualifiersPerGroup
		}
		if o.SwissRounds != nil {
			cfg.SwissRounds = *o.SwissRounds
		}
		if o.Seed != nil {
			cfg.Seed = *o.Seed
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	now := utcNow()
	c := &models.Competition{
		Name:            name,
		Format:          input.Format,
		ScoringMode:     input.ScoringMode,
		MinParticipants: min,
		MaxParticipants: max,
		Status:          models.StatusDraft,
		Config:          cfg,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Repos().Competitions.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create competition: %w", handleRepositoryError(err))
	}
	s.logger.Info("competition created", slog.Int("competition_id", c.ID), slog.String("format", string(c.Format)))
	return c, nil
}

func (s *competitionService) Get(ctx context.Context, id int) (*models.Competition, error) {
	c, err := s.store.Repos().Competitions.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return c, nil
}

func (s *competitionService) List(ctx context.Context, filter repositories.ListCompetitionsFilter) ([]*models.Competition, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	list, err := s.store.Repos().Competitions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	if list == nil {
		return []*models.Competition{}, nil
	}
	return list, nil
}

func (s *competitionService) OpenEnrollment(ctx context.Context, id int) (*models.Competition, error) {
	var out *models.Competition
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := transition(c, models.StatusEnrolling, utcNow()); err != nil {
			return err
		}
		if err := r.Competitions.Update(ctx, c); err != nil {
			return handleRepositoryError(err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(out.ID, brackets.EventCompetitionUpdated, out)
	return out, nil
}

// requireEnrollmentOpen rejects roster changes once sessions exist or enrollment has ended.
func requireEnrollmentOpen(c *models.Competition) error {
	if c.SessionsGenerated {
		return fmt.Errorf("%w: sessions of competition %d are already generated", ErrEnrollmentClosed, c.ID)
	}
	return requireStatus(c, ErrEnrollmentClosed, models.StatusEnrolling)
}

func (s *competitionService) Enroll(ctx context.Context, competitionID, participantID int, seed *int) (*models.Enrollment, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidParticipant, participantID)
	}
	if seed != nil && *seed <= 0 {
		return nil, fmt.Errorf("%w: seed must be positive, got %d", ErrValidation, *seed)
	}

	var out *models.Enrollment
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, competitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := requireEnrollmentOpen(c); err != nil {
			return err
		}

		existing, err := r.Enrollments.Get(ctx, c.ID, participantID)
		switch {
		case err == nil && existing.Status == models.EnrollmentActive:
			return fmt.Errorf("%w: participant %d in competition %d", ErrAlreadyEnrolled, participantID, c.ID)
		case err != nil && !errors.Is(err, repositories.ErrEnrollmentNotFound):
			return fmt.Errorf("get enrollment: %w", err)
		}

		active, err := r.Enrollments.CountActive(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("count enrollments for competition %d: %w", c.ID, err)
		}
		if c.MaxParticipants > 0 && active >= c.MaxParticipants {
			return fmt.Errorf("%w: %d of %d places taken", ErrCompetitionFull, active, c.MaxParticipants)
		}

		now := utcNow()
		if existing != nil {
			existing.Status = models.EnrollmentActive
			existing.Seed = seed
			existing.UpdatedAt = now
			if err := r.Enrollments.Update(ctx, existing); err != nil {
				return handleRepositoryError(err)
			}
			out = existing
			return nil
		}

		e := &models.Enrollment{
			CompetitionID: c.ID,
			ParticipantID: participantID,
			Status:        models.EnrollmentActive,
			Seed:          seed,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := r.Enrollments.Create(ctx, e); err != nil {
			if errors.Is(err, repositories.ErrUniqueViolation) {
				return fmt.Errorf("%w: participant %d", ErrAlreadyEnrolled, participantID)
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *competitionService) Withdraw(ctx context.Context, competitionID, participantID int) (*models.Enrollment, error) {
	var out *models.Enrollment
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, competitionID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := requireEnrollmentOpen(c); err != nil {
			return err
		}
		e, err := r.Enrollments.Get(ctx, c.ID, participantID)
		if err != nil {
			return handleRepositoryError(err)
		}
		if e.Status != models.EnrollmentWithdrawn {
			e.Status = models.EnrollmentWithdrawn
			e.UpdatedAt = utcNow()
			if err := r.Enrollments.Update(ctx, e); err != nil {
				return handleRepositoryError(err)
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *competitionService) ListEnrollments(ctx context.Context, competitionID int) ([]*models.Enrollment, error) {
	repos := s.store.Repos()
	if _, err := repos.Competitions.GetByID(ctx, competitionID); err != nil {
		return nil, handleRepositoryError(err)
	}
	list, err := repos.Enrollments.ListActive(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments for competition %d: %w", competitionID, err)
	}
	if list == nil {
		return []*models.Enrollment{}, nil
	}
	return list, nil
}

func (s *competitionService) ListMatches(ctx context.Context, competitionID int) ([]*models.Match, error) {
	repos := s.store.Repos()
	if _, err := repos.Competitions.GetByID(ctx, competitionID); err != nil {
		return nil, handleRepositoryError(err)
	}
	list, err := repos.Matches.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of competition %d: %w", competitionID, err)
	}
	if list == nil {
		return []*models.Match{}, nil
	}
	return list, nil
}

func (s *competitionService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.store.Repos().Matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	return m, nil
}

type archiveSnapshot struct {
	Competition  *models.Competition         `json:"competition"`
	Rankings     []*models.Ranking           `json:"rankings"`
	Rewards      []*models.RewardTransaction `json:"rewards"`
	Achievements []*models.Achievement       `json:"achievements"`
	ArchivedAt   time.Time                   `json:"archived_at"`
}

// ArchiveKey is the object key of a competition's snapshot.
func ArchiveKey(c *models.Competition) string {
	name := slug.Make(c.Name)
	if name == "" {
		name = "competition"
	}
	return fmt.Sprintf("archives/%d-%s.json", c.ID, name)
}

func (s *competitionService) Archive(ctx context.Context, id int) (*models.Competition, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("%w: no archive storage configured", ErrState)
	}

	var (
		out      *models.Competition
		uploaded string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, r repositories.Repos) error {
		c, err := r.Competitions.GetForUpdate(ctx, id)
		if err != nil {
			return handleRepositoryError(err)
		}
		if err := requireStatus(c, ErrState, models.StatusRewardsDistributed); err != nil {
			return err
		}

		snapshot := archiveSnapshot{Competition: c, ArchivedAt: utcNow()}
		if snapshot.Rankings, err = r.Rankings.ListByCompetition(ctx, c.ID); err != nil {
			return fmt.Errorf("list rankings of competition %d: %w", c.ID, err)
		}
		if snapshot.Rewards, err = r.Rewards.ListTransactions(ctx, c.ID); err != nil {
			return fmt.Errorf("list rewards of competition %d: %w", c.ID, err)
		}
		if snapshot.Achievements, err = r.Rewards.ListAchievements(ctx, c.ID); err != nil {
			return fmt.Errorf("list achievements of competition %d: %w", c.ID, err)
		}
		body, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode archive of competition %d: %w", c.ID, err)
		}

		key := ArchiveKey(c)
		if _, err := s.archive.Upload(ctx, key, "application/json", bytes.NewReader(body)); err != nil {
			return fmt.Errorf("upload archive %s: %w", key, err)
		}
		uploaded = key

		if err := transition(c, models.StatusArchived, snapshot.ArchivedAt); err != nil {
			return err
		}
		c.ArchiveKey = &key
		if err := r.Competitions.Update(ctx, c); err != nil {
			return handleRepositoryError(err)
		}
		out = c
		return nil
	})
	if err != nil {
		if uploaded != "" {
			if delErr := s.archive.Delete(context.WithoutCancel(ctx), uploaded); delErr != nil {
				s.logger.Warn("failed to remove orphaned archive", slog.String("key", uploaded), slog.String("error", delErr.Error()))
			}
		}
		return nil, err
	}

	s.logger.Info("competition archived", slog.Int("competition_id", out.ID), slog.String("key", *out.ArchiveKey))
	s.events.Publish(out.ID, brackets.EventCompetitionUpdated, out)
	return out, nil
}
