package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
)

func startDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForTask(t *testing.T, d *Dispatcher, competitionID int, taskID string) *GenerationStatus {
	t.Helper()
	var last *GenerationStatus
	require.Eventually(t, func() bool {
		st, err := d.Status(context.Background(), competitionID, taskID)
		if err != nil {
			return false
		}
		last = st
		return st.Status.Terminal()
	}, 15*time.Second, 10*time.Millisecond)
	return last
}

func TestAsyncSingleEliminationLargeRoster(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DispatcherConfig{AsyncThreshold: 128})
	c := env.enrolledCompetition(t, CreateCompetitionInput{
		Format:      models.FormatSingleElimination,
		ScoringMode: models.ScoringScoreBased,
	}, 1024)

	resp, err := env.dispatcher.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, ModeAsync, resp.Mode)
	assert.Equal(t, models.TaskPending, resp.Status)
	require.NotEmpty(t, resp.TaskID)

	again, err := env.dispatcher.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, resp.TaskID, again.TaskID, "pending task is reused")

	startDispatcher(t, env.dispatcher)
	st := waitForTask(t, env.dispatcher, c.ID, resp.TaskID)
	assert.Equal(t, models.TaskSuccess, st.Status)
	assert.Equal(t, 1024, st.SessionCount)
	assert.False(t, st.NoOp)

	matches, err := env.competitions.ListMatches(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, matches, 1024, "1023 bracket matches and the playoff")

	maxRound, firstRound := 0, 0
	for _, m := range matches {
		if m.Round > maxRound {
			maxRound = m.Round
		}
		if m.Round == 1 {
			firstRound++
			assert.True(t, m.Ready())
			assert.NotEqual(t, *m.Participant1ID, *m.Participant2ID)
		}
	}
	assert.Equal(t, 10, maxRound)
	assert.Equal(t, 512, firstRound)

	overall, err := env.dispatcher.Status(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.TaskSuccess, overall.Status)
	assert.Equal(t, 1024, overall.SessionCount)

	_, err = env.dispatcher.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	assert.ErrorIs(t, err, ErrSessionsAlreadyGenerated)
}

func TestDispatcherAbsorbsAlreadyGenerated(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DispatcherConfig{AsyncThreshold: 2})
	c := env.enrolledCompetition(t, CreateCompetitionInput{
		Format:      models.FormatRoundRobin,
		ScoringMode: models.ScoringScoreBased,
	}, 4)

	resp, err := env.dispatcher.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)
	require.Equal(t, ModeAsync, resp.Mode)

	// Another path wins the race before the queued task starts.
	_, err = env.generation.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)

	startDispatcher(t, env.dispatcher)
	st := waitForTask(t, env.dispatcher, c.ID, resp.TaskID)
	assert.Equal(t, models.TaskSuccess, st.Status)
	assert.True(t, st.NoOp)
	assert.Equal(t, 6, st.SessionCount)

	matches, err := env.competitions.ListMatches(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 6)
	assert.Positive(t, env.events.count(brackets.EventGenerationStatus))
}

func TestConcurrentGenerateCreatesOneSchedule(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DispatcherConfig{})
	c := env.enrolledCompetition(t, CreateCompetitionInput{
		Format:      models.FormatRoundRobin,
		ScoringMode: models.ScoringScoreBased,
	}, 8)

	const callers = 16
	errs := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = env.dispatcher.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrSessionsAlreadyGenerated)
	}
	assert.Equal(t, 1, succeeded)

	matches, err := env.competitions.ListMatches(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, matches, 28)
	assert.Equal(t, 1, env.events.count(brackets.EventSessionsGenerated))
}

type flakyGenerator struct {
	mu       sync.Mutex
	calls    int
	failures int
	failWith error
	roster   int
}

func (g *flakyGenerator) Precheck(ctx context.Context, req GenerateRequest) (int, error) {
	return g.roster, nil
}

func (g *flakyGenerator) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= g.failures {
		return nil, g.failWith
	}
	return &GenerationResult{CompetitionID: req.CompetitionID, SessionCount: 7, GeneratedAt: time.Now()}, nil
}

func (g *flakyGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func storeWithCompetition(t *testing.T) (*repositories.MemoryStore, *models.Competition) {
	t.Helper()
	store := repositories.NewMemoryStore()
	c := &models.Competition{
		Name:        "Queue Cup",
		Format:      models.FormatSingleElimination,
		ScoringMode: models.ScoringScoreBased,
		Status:      models.StatusEnrolling,
		Config:      models.DefaultCompetitionConfig(),
	}
	require.NoError(t, store.Repos().Competitions.Create(context.Background(), c))
	return store, c
}

func TestDispatcherRetries(t *testing.T) {
	transient := errors.New("connection reset by peer")

	tests := []struct {
		name         string
		failures     int
		failWith     error
		wantStatus   models.TaskStatus
		wantAttempts int
		wantError    string
	}{
		{"recovers after transient failures", 2, transient, models.TaskSuccess, 3, ""},
		{"gives up after max retries", 5, transient, models.TaskFailed, 3, "connection reset by peer"},
		{"validation errors are not retried", 5, ErrInvalidParticipantCount, models.TaskFailed, 1, "invalid participant count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, c := storeWithCompetition(t)
			gen := &flakyGenerator{failures: tt.failures, failWith: tt.failWith, roster: 500}
			d := NewDispatcher(DispatcherConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, store, gen, nil, discardLogger())

			resp, err := d.Generate(context.Background(), GenerateRequest{CompetitionID: c.ID})
			require.NoError(t, err)

			startDispatcher(t, d)
			st := waitForTask(t, d, c.ID, resp.TaskID)
			assert.Equal(t, tt.wantStatus, st.Status)
			assert.Equal(t, tt.wantAttempts, st.Attempts)
			assert.Equal(t, tt.wantAttempts, gen.callCount())
			if tt.wantError != "" {
				assert.Contains(t, st.Error, tt.wantError)
			} else {
				assert.Empty(t, st.Error)
				assert.Equal(t, 7, st.SessionCount)
			}
		})
	}
}

func TestFailedTaskAllowsNewTask(t *testing.T) {
	store, c := storeWithCompetition(t)
	gen := &flakyGenerator{failures: 1, failWith: errors.New("disk full"), roster: 500}
	d := NewDispatcher(DispatcherConfig{MaxRetries: 1}, store, gen, nil, discardLogger())
	startDispatcher(t, d)

	first, err := d.Generate(context.Background(), GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)
	st := waitForTask(t, d, c.ID, first.TaskID)
	require.Equal(t, models.TaskFailed, st.Status)

	latest, err := d.Status(context.Background(), c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, first.TaskID, latest.TaskID)
	assert.Equal(t, models.TaskFailed, latest.Status)
	assert.Contains(t, latest.Error, "disk full")

	second, err := d.Generate(context.Background(), GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)
	assert.NotEqual(t, first.TaskID, second.TaskID)
	st = waitForTask(t, d, c.ID, second.TaskID)
	assert.Equal(t, models.TaskSuccess, st.Status)

	latest, err = d.Status(context.Background(), c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, second.TaskID, latest.TaskID)
	assert.Equal(t, models.TaskSuccess, latest.Status)
}

func TestStatusLookups(t *testing.T) {
	ctx := context.Background()
	store, c := storeWithCompetition(t)
	d := NewDispatcher(DispatcherConfig{}, store, &flakyGenerator{roster: 500}, nil, discardLogger())

	_, err := d.Status(ctx, c.ID, "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = d.Status(ctx, c.ID, "8f14e45f-ceea-467f-a0e6-1234567890ab")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	resp, err := d.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)

	st, err := d.Status(ctx, c.ID, "")
	require.NoError(t, err)
	assert.Equal(t, resp.TaskID, st.TaskID)
	assert.Equal(t, models.TaskPending, st.Status)

	_, err = d.Status(ctx, c.ID+1, resp.TaskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = d.Status(ctx, 999, "")
	assert.ErrorIs(t, err, ErrCompetitionNotFound)
}

func TestRequeueSchedulerRecoversStaleTasks(t *testing.T) {
	ctx := context.Background()
	store, c := storeWithCompetition(t)
	old := time.Now().UTC().Add(-time.Hour)
	task := &models.GenerationTask{
		ID:            "5d1a3f0e-7c2b-4e8a-9f6d-0b1c2d3e4f50",
		CompetitionID: c.ID,
		Status:        models.TaskPending,
		CreatedAt:     old,
		UpdatedAt:     old,
	}
	require.NoError(t, store.Repos().Tasks.Create(ctx, task))

	gen := &flakyGenerator{roster: 500}
	d := NewDispatcher(DispatcherConfig{StaleAfter: time.Minute, RequeueInterval: 20 * time.Millisecond}, store, gen, nil, discardLogger())

	sched, err := d.StartRequeueScheduler(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Shutdown() })
	startDispatcher(t, d)

	st := waitForTask(t, d, c.ID, task.ID)
	assert.Equal(t, models.TaskSuccess, st.Status)
	assert.Equal(t, 1, st.Attempts)
}

func TestRequeueStaleSkipsFreshTasks(t *testing.T) {
	ctx := context.Background()
	store, c := storeWithCompetition(t)
	now := time.Now().UTC()
	require.NoError(t, store.Repos().Tasks.Create(ctx, &models.GenerationTask{
		ID: "0f0e0d0c-0b0a-4908-8706-050403020100", CompetitionID: c.ID, Status: models.TaskPending, CreatedAt: now, UpdatedAt: now,
	}))

	d := NewDispatcher(DispatcherConfig{StaleAfter: time.Hour}, store, &flakyGenerator{roster: 500}, nil, discardLogger())
	n, err := d.RequeueStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
