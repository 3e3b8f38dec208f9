package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
)

func TestConcurrentDistributeRewardsPaysOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, DispatcherConfig{})
	c := env.enrolledCompetition(t, CreateCompetitionInput{
		Format:      models.FormatRoundRobin,
		ScoringMode: models.ScoringScoreBased,
	}, 8)
	_, err := env.dispatcher.Generate(ctx, GenerateRequest{CompetitionID: c.ID})
	require.NoError(t, err)
	env.playAll(t, c.ID, lowerIDWins)
	_, err = env.rankings.CalculateRankings(ctx, c.ID)
	require.NoError(t, err)

	const callers = 16
	summaries := make([]*models.RewardSummary, callers)
	errs := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			summaries[i], errs[i] = env.rewards.DistributeRewards(ctx, c.ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			assert.Equal(t, 8, summaries[i].ParticipantsRewarded)
			continue
		}
		assert.ErrorIs(t, err, ErrRewardsAlreadyDistributed)
	}
	assert.Equal(t, 1, succeeded)

	rewards, err := env.rewards.ListRewards(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, rewards.Transactions, 40)
	assert.Len(t, rewards.Achievements, 4)
	assert.Equal(t, 1, env.events.count(brackets.EventRewardsDistributed))

	c, err = env.competitions.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRewardsDistributed, c.Status)
}
