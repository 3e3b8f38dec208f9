package repositories

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/football-investment/practice-booking-system-sub003/db"
	"github.com/football-investment/practice-booking-system-sub003/models"
)

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupPostgresStore starts a throwaway Postgres and applies the embedded migrations.
func setupPostgresStore(t *testing.T) Store {
	if testing.Short() || !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Connect(connStr, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn))
	return NewPostgresStore(conn)
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreBulkRewards(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c := newCompetition(t, ctx, s)

	const participants = 4096
	start := time.Now()
	err := s.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		for p := 1; p <= participants; p++ {
			for _, cat := range []models.RewardCategory{models.RewardCredit, models.RewardXP} {
				if err := r.Rewards.CreateTransaction(ctx, &models.RewardTransaction{
					CompetitionID: c.ID, ParticipantID: p, Category: cat, Amount: 10, Rank: p,
					IdempotencyKey: models.RewardIdempotencyKey(c.ID, p, cat, ""),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	list, err := s.Repos().Rewards.ListTransactions(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2*participants)
}

func TestPostgresStore(t *testing.T) {
	runStoreContract(t, setupPostgresStore(t))
}

func newCompetition(t *testing.T, ctx context.Context, s Store) *models.Competition {
	c := &models.Competition{
		Name:            "Spring Cup",
		Format:          models.FormatRoundRobin,
		ScoringMode:     models.ScoringScoreBased,
		MinParticipants: 2,
		MaxParticipants: 16,
		Status:          models.StatusDraft,
		Config:          models.DefaultCompetitionConfig(),
	}
	require.NoError(t, s.Repos().Competitions.Create(ctx, c))
	require.NotZero(t, c.ID)
	return c
}

func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()

	t.Run("competition round trip", func(t *testing.T) {
		c := newCompetition(t, ctx, s)

		got, err := s.Repos().Competitions.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Spring Cup", got.Name)
		assert.Equal(t, []string{"technique", "tactics", "stamina"}, got.Config.SkillsTested)

		_, err = s.Repos().Competitions.GetByID(ctx, c.ID+1000)
		assert.ErrorIs(t, err, ErrCompetitionNotFound)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		boom := errors.New("boom")

		err := s.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			locked, err := r.Competitions.GetForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			now := time.Now().UTC()
			locked.SessionsGenerated = true
			locked.SessionsGeneratedAt = &now
			locked.Status = models.StatusEnrolling
			if err := r.Competitions.Update(ctx, locked); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := s.Repos().Competitions.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.False(t, got.SessionsGenerated)
		assert.Equal(t, models.StatusDraft, got.Status)
	})

	t.Run("enrollment uniqueness", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		e := &models.Enrollment{CompetitionID: c.ID, ParticipantID: 7, Status: models.EnrollmentActive}
		require.NoError(t, s.Repos().Enrollments.Create(ctx, e))

		dup := &models.Enrollment{CompetitionID: c.ID, ParticipantID: 7, Status: models.EnrollmentActive}
		assert.ErrorIs(t, s.Repos().Enrollments.Create(ctx, dup), ErrUniqueViolation)

		n, err := s.Repos().Enrollments.CountActive(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("matches batch insert and lookup", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		p1, p2 := 1, 2
		src := "SE-R1M1"
		batch := []*models.Match{
			{CompetitionID: c.ID, Stage: models.StageMain, Round: 1, OrderInRound: 1, BracketUID: "SE-R1M1", Participant1ID: &p1, Participant2ID: &p2},
			{CompetitionID: c.ID, Stage: models.StageMain, Round: 2, OrderInRound: 1, BracketUID: "SE-R2M1", Source1UID: &src, Source1Outcome: models.OutcomeWinner},
		}
		require.NoError(t, s.Repos().Matches.CreateBatch(ctx, batch))
		assert.NotZero(t, batch[0].ID)
		assert.NotEqual(t, batch[0].ID, batch[1].ID)

		fed, err := s.Repos().Matches.ListBySource(ctx, c.ID, "SE-R1M1")
		require.NoError(t, err)
		require.Len(t, fed, 1)
		assert.Equal(t, "SE-R2M1", fed[0].BracketUID)

		v1, v2 := 3.0, 1.0
		m := batch[0]
		m.Result = &models.MatchResult{Value1: &v1, Value2: &v2}
		m.WinnerID = &p1
		m.Finalized = true
		require.NoError(t, s.Repos().Matches.Update(ctx, m))

		got, err := s.Repos().Matches.GetByUID(ctx, c.ID, "SE-R1M1")
		require.NoError(t, err)
		assert.True(t, got.Finalized)
		require.NotNil(t, got.Result)
		assert.Equal(t, 3.0, *got.Result.Value1)

		dup := []*models.Match{{CompetitionID: c.ID, Stage: models.StageMain, Round: 1, OrderInRound: 2, BracketUID: "SE-R1M1"}}
		assert.ErrorIs(t, s.Repos().Matches.CreateBatch(ctx, dup), ErrUniqueViolation)
	})

	t.Run("rankings are replaced", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		now := time.Now().UTC().Truncate(time.Microsecond)
		first := []*models.Ranking{
			{CompetitionID: c.ID, ParticipantID: 1, Rank: 1, Points: 6, ComputedAt: now},
			{CompetitionID: c.ID, ParticipantID: 2, Rank: 2, Points: 3, ComputedAt: now},
		}
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			return r.Rankings.ReplaceAll(ctx, c.ID, first)
		}))
		second := []*models.Ranking{
			{CompetitionID: c.ID, ParticipantID: 2, Rank: 1, Points: 6, ComputedAt: now},
			{CompetitionID: c.ID, ParticipantID: 1, Rank: 2, Points: 3, ComputedAt: now},
		}
		require.NoError(t, s.Repos().Rankings.ReplaceAll(ctx, c.ID, second))

		got, err := s.Repos().Rankings.ListByCompetition(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 2, got[0].ParticipantID)
	})

	t.Run("reward idempotency keys are unique", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		key := models.RewardIdempotencyKey(c.ID, 1, models.RewardCredit, "")
		require.NoError(t, s.Repos().Rewards.CreateTransaction(ctx, &models.RewardTransaction{
			CompetitionID: c.ID, ParticipantID: 1, Category: models.RewardCredit, Amount: 500, Rank: 1, IdempotencyKey: key,
		}))
		err := s.Repos().Rewards.CreateTransaction(ctx, &models.RewardTransaction{
			CompetitionID: c.ID, ParticipantID: 1, Category: models.RewardCredit, Amount: 500, Rank: 1, IdempotencyKey: key,
		})
		assert.ErrorIs(t, err, ErrUniqueViolation)

		require.NoError(t, s.Repos().Rewards.CreateTransaction(ctx, &models.RewardTransaction{
			CompetitionID: c.ID, ParticipantID: 1, Category: models.RewardSkill, SkillName: "tactics", Amount: -4, Rank: 1,
			IdempotencyKey: models.RewardIdempotencyKey(c.ID, 1, models.RewardSkill, "tactics"),
		}))

		list, err := s.Repos().Rewards.ListTransactions(ctx, c.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		a := &models.Achievement{CompetitionID: c.ID, ParticipantID: 1, Badge: models.BadgeChampion}
		require.NoError(t, s.Repos().Rewards.CreateAchievement(ctx, a))
		dup := &models.Achievement{CompetitionID: c.ID, ParticipantID: 1, Badge: models.BadgeChampion}
		assert.ErrorIs(t, s.Repos().Rewards.CreateAchievement(ctx, dup), ErrUniqueViolation)
	})

	t.Run("reward slots are unique across keys", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		require.NoError(t, s.Repos().Rewards.CreateTransaction(ctx, &models.RewardTransaction{
			CompetitionID: c.ID, ParticipantID: 7, Category: models.RewardXP, Amount: 40, Rank: 3,
			IdempotencyKey: models.RewardIdempotencyKey(c.ID, 7, models.RewardXP, ""),
		}))
		err := s.Repos().Rewards.CreateTransaction(ctx, &models.RewardTransaction{
			CompetitionID: c.ID, ParticipantID: 7, Category: models.RewardXP, Amount: 40, Rank: 3,
			IdempotencyKey: "other-key",
		})
		assert.ErrorIs(t, err, ErrUniqueViolation)

		boom := errors.New("boom")
		err = s.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			if err := r.Rewards.CreateTransaction(ctx, &models.RewardTransaction{
				CompetitionID: c.ID, ParticipantID: 8, Category: models.RewardXP, Amount: 20, Rank: 4,
				IdempotencyKey: models.RewardIdempotencyKey(c.ID, 8, models.RewardXP, ""),
			}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		require.NoError(t, s.Repos().Rewards.CreateTransaction(ctx, &models.RewardTransaction{
			CompetitionID: c.ID, ParticipantID: 8, Category: models.RewardXP, Amount: 20, Rank: 4,
			IdempotencyKey: models.RewardIdempotencyKey(c.ID, 8, models.RewardXP, ""),
		}))
	})

	t.Run("one active task per competition", func(t *testing.T) {
		c := newCompetition(t, ctx, s)
		now := time.Now().UTC().Add(-time.Hour)
		task := &models.GenerationTask{ID: uuid.NewString(), CompetitionID: c.ID, Status: models.TaskPending, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.Repos().Tasks.Create(ctx, task))

		other := &models.GenerationTask{ID: uuid.NewString(), CompetitionID: c.ID, Status: models.TaskPending, CreatedAt: now, UpdatedAt: now}
		assert.ErrorIs(t, s.Repos().Tasks.Create(ctx, other), ErrUniqueViolation)

		active, err := s.Repos().Tasks.GetActive(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, active.ID)

		stale, err := s.Repos().Tasks.ListStale(ctx, time.Now().UTC().Add(-time.Minute))
		require.NoError(t, err)
		var ids []string
		for _, st := range stale {
			ids = append(ids, st.ID)
		}
		assert.Contains(t, ids, task.ID)

		task.Status = models.TaskSuccess
		task.UpdatedAt = time.Now().UTC()
		require.NoError(t, s.Repos().Tasks.Update(ctx, task))
		_, err = s.Repos().Tasks.GetActive(ctx, c.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)

		finished, err := s.Repos().Tasks.GetLatestFinished(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, finished.ID)
		assert.Equal(t, models.TaskSuccess, finished.Status)

		_, err = s.Repos().Tasks.GetLatestFinished(ctx, c.ID+1000)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}
