package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
	"github.com/football-investment/practice-booking-system-sub003/storage"
)

type recordedEvent struct {
	competitionID int
	eventType     string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(competitionID int, eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{competitionID: competitionID, eventType: eventType})
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

type testEnv struct {
	store        *repositories.MemoryStore
	archive      *storage.MemoryArchive
	events       *recordingPublisher
	competitions CompetitionService
	generation   GenerationService
	dispatcher   *Dispatcher
	results      ResultService
	rankings     RankingService
	rewards      RewardService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, cfg DispatcherConfig) *testEnv {
	t.Helper()
	logger := discardLogger()
	store := repositories.NewMemoryStore()
	archive := storage.NewMemoryArchive("https://cdn.example.com")
	events := &recordingPublisher{}
	validator := NewRosterValidator(brackets.DefaultSupportMatrix())
	generation := NewGenerationService(store, validator, events, logger)

	return &testEnv{
		store:        store,
		archive:      archive,
		events:       events,
		competitions: NewCompetitionService(store, archive, validator, DefaultEngineDefaults(), events, logger),
		generation:   generation,
		dispatcher:   NewDispatcher(cfg, store, generation, events, logger),
		results:      NewResultService(store, events, logger),
		rankings:     NewRankingService(store, events, logger),
		rewards:      NewRewardService(store, events, logger),
	}
}

// enrolledCompetition creates a competition in ENROLLING with participants 101..100+n.
func (e *testEnv) enrolledCompetition(t *testing.T, input CreateCompetitionInput, n int) *models.Competition {
	t.Helper()
	ctx := context.Background()
	if input.Name == "" {
		input.Name = "Spring League"
	}
	c, err := e.competitions.Create(ctx, input)
	require.NoError(t, err)
	_, err = e.competitions.OpenEnrollment(ctx, c.ID)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := e.competitions.Enroll(ctx, c.ID, 101+i, nil)
		require.NoError(t, err)
	}
	return c
}

type resultFunc func(c *models.Competition, m *models.Match) *models.MatchResult

func floatPtr(v float64) *float64 { return &v }

// lowerIDWins makes the participant with the smaller ID win every match.
func lowerIDWins(c *models.Competition, m *models.Match) *models.MatchResult {
	p1Wins := *m.Participant1ID < *m.Participant2ID
	win, lose := 2.0, 0.0
	switch c.ScoringMode {
	case models.ScoringTimeBased:
		win, lose = 10.5, 12.25
	case models.ScoringPlacement:
		if p1Wins {
			return &models.MatchResult{Placement1: intPtr(1), Placement2: intPtr(2)}
		}
		return &models.MatchResult{Placement1: intPtr(2), Placement2: intPtr(1)}
	}
	if p1Wins {
		return &models.MatchResult{Value1: floatPtr(win), Value2: floatPtr(lose)}
	}
	return &models.MatchResult{Value1: floatPtr(lose), Value2: floatPtr(win)}
}

func intPtr(v int) *int { return &v }

// playAll submits results until every session, including ones generated on the way,
// is finalized.
func (e *testEnv) playAll(t *testing.T, competitionID int, decide resultFunc) []*models.Match {
	t.Helper()
	ctx := context.Background()
	c, err := e.competitions.Get(ctx, competitionID)
	require.NoError(t, err)

	for pass := 0; pass < 10000; pass++ {
		matches, err := e.competitions.ListMatches(ctx, competitionID)
		require.NoError(t, err)

		submitted := false
		for _, m := range matches {
			if m.Finalized || !m.Ready() {
				continue
			}
			_, err := e.results.SubmitResult(ctx, m.ID, decide(c, m))
			require.NoError(t, err, "match %s", m.BracketUID)
			submitted = true
		}
		if !submitted {
			for _, m := range matches {
				require.True(t, m.Finalized, "match %s left open", m.BracketUID)
			}
			return matches
		}
	}
	t.Fatal("bracket did not finish")
	return nil
}

func rankedParticipants(rankings []*models.Ranking) []int {
	out := make([]int, len(rankings))
	for i, rk := range rankings {
		out[i] = rk.ParticipantID
	}
	return out
}
