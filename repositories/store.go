package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrEnrollmentNotFound  = errors.New("enrollment not found")
	ErrMatchNotFound       = errors.New("match not found")
	ErrTaskNotFound        = errors.New("generation task not found")
	// ErrUniqueViolation is returned when an insert collides with a unique key.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

type ListCompetitionsFilter struct {
	Status *models.CompetitionStatus
	Format *models.Format
	Limit  int
	Offset int
}

type CompetitionRepository interface {
	Create(ctx context.Context, c *models.Competition) error
	GetByID(ctx context.Context, id int) (*models.Competition, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int) (*models.Competition, error)
	List(ctx context.Context, filter ListCompetitionsFilter) ([]*models.Competition, error)
	Update(ctx context.Context, c *models.Competition) error
}

type EnrollmentRepository interface {
	Create(ctx context.Context, e *models.Enrollment) error
	Get(ctx context.Context, competitionID, participantID int) (*models.Enrollment, error)
	Update(ctx context.Context, e *models.Enrollment) error
	ListActive(ctx context.Context, competitionID int) ([]*models.Enrollment, error)
	CountActive(ctx context.Context, competitionID int) (int, error)
}

type MatchRepository interface {
	// CreateBatch inserts all matches and fills their IDs.
	CreateBatch(ctx context.Context, matches []*models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetForUpdate(ctx context.Context, id int) (*models.Match, error)
	GetByUID(ctx context.Context, competitionID int, uid string) (*models.Match, error)
	ListByCompetition(ctx context.Context, competitionID int) ([]*models.Match, error)
	// ListBySource returns matches whose slots are fed by the given match.
	ListBySource(ctx context.Context, competitionID int, sourceUID string) ([]*models.Match, error)
	CountByCompetition(ctx context.Context, competitionID int) (int, error)
	Update(ctx context.Context, m *models.Match) error
}

type RankingRepository interface {
	// ReplaceAll deletes the competition's rankings and inserts the new set.
	ReplaceAll(ctx context.Context, competitionID int, rankings []*models.Ranking) error
	ListByCompetition(ctx context.Context, competitionID int) ([]*models.Ranking, error)
}

type RewardRepository interface {
	CreateTransaction(ctx context.Context, t *models.RewardTransaction) error
	ListTransactions(ctx context.Context, competitionID int) ([]*models.RewardTransaction, error)
	CreateAchievement(ctx context.Context, a *models.Achievement) error
	ListAchievements(ctx context.Context, competitionID int) ([]*models.Achievement, error)
}

type TaskRepository interface {
	Create(ctx context.Context, t *models.GenerationTask) error
	GetByID(ctx context.Context, id string) (*models.GenerationTask, error)
	// GetActive returns the pending or running task of a competition, if any.
	GetActive(ctx context.Context, competitionID int) (*models.GenerationTask, error)
	// GetLatestFinished returns the most recently updated succeeded or failed task.
	GetLatestFinished(ctx context.Context, competitionID int) (*models.GenerationTask, error)
	Update(ctx context.Context, t *models.GenerationTask) error
	ListStale(ctx context.Context, updatedBefore time.Time) ([]*models.GenerationTask, error)
}

// Repos groups the repositories bound to one executor (the pool or a transaction).
type Repos struct {
	Competitions CompetitionRepository
	Enrollments  EnrollmentRepository
	Matches      MatchRepository
	Rankings     RankingRepository
	Rewards      RewardRepository
	Tasks        TaskRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repos
	// WithinTx runs fn in one transaction. fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Ping(ctx context.Context) error
}
