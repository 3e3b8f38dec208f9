package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

func finished(p1, p2 int, v1, v2 float64) *models.Match {
	m := &models.Match{
		Stage:          models.StageMain,
		Participant1ID: intPtr(p1),
		Participant2ID: intPtr(p2),
		Result:         &models.MatchResult{Value1: floatPtr(v1), Value2: floatPtr(v2)},
		Finalized:      true,
	}
	switch {
	case v1 > v2:
		m.WinnerID = intPtr(p1)
	case v2 > v1:
		m.WinnerID = intPtr(p2)
	}
	return m
}

func roundRobinCompetition() *models.Competition {
	return &models.Competition{
		ID:          1,
		Format:      models.FormatRoundRobin,
		ScoringMode: models.ScoringScoreBased,
		Config:      models.DefaultCompetitionConfig(),
	}
}

func TestComputeRankingsTieBreakers(t *testing.T) {
	matches := []*models.Match{
		finished(1, 2, 1, 1),
		finished(1, 3, 2, 0),
		finished(1, 4, 0, 1),
		finished(2, 3, 4, 3),
		finished(2, 4, 2, 2),
		finished(3, 4, 2, 2),
	}
	rankings := ComputeRankings(roundRobinCompetition(), []int{4, 3, 2, 1}, matches, time.Now())
	require.Len(t, rankings, 4)

	// 2 and 4 share 5 points and a +1 difference; 2 scored 7 to 4's 5.
	assert.Equal(t, []int{2, 4, 1, 3}, rankedParticipants(rankings))
	assert.True(t, rankings[0].Tied)
	assert.True(t, rankings[1].Tied)
	assert.False(t, rankings[2].Tied)
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 4, rankings[3].Rank)
}

func TestComputeRankingsResolvesByParticipantID(t *testing.T) {
	matches := []*models.Match{
		finished(7, 3, 1, 1),
	}
	rankings := ComputeRankings(roundRobinCompetition(), []int{7, 3}, matches, time.Now())
	assert.Equal(t, []int{3, 7}, rankedParticipants(rankings))
	assert.True(t, rankings[0].Tied)
	assert.Equal(t, []int{1, 2}, []int{rankings[0].Rank, rankings[1].Rank})
}

func TestComputeRankingsTimeOrientation(t *testing.T) {
	c := roundRobinCompetition()
	c.ScoringMode = models.ScoringTimeBased
	m := finished(1, 2, 9.8, 10.1)
	m.WinnerID = intPtr(1)

	rankings := ComputeRankings(c, []int{1, 2}, []*models.Match{m}, time.Now())
	assert.Equal(t, 1, rankings[0].ParticipantID)
	assert.InDelta(t, 0.3, rankings[0].ScoreDifference, 1e-9)
	assert.InDelta(t, -0.3, rankings[1].ScoreDifference, 1e-9)
}

func TestComputeRankingsSwissBuchholz(t *testing.T) {
	c := roundRobinCompetition()
	c.Format = models.FormatSwiss
	swiss := func(m *models.Match) *models.Match {
		m.Stage = models.StageSwiss
		return m
	}
	matches := []*models.Match{
		swiss(finished(1, 2, 1, 0)),
		swiss(finished(3, 4, 1, 0)),
		swiss(finished(1, 3, 0, 1)),
		swiss(finished(2, 4, 1, 0)),
	}
	// 1 and 2 both have 3 points; 1 met stronger opposition.
	rankings := ComputeRankings(c, []int{1, 2, 3, 4}, matches, time.Now())
	assert.Equal(t, []int{3, 1, 2, 4}, rankedParticipants(rankings))
	assert.Equal(t, 9, rankings[1].Buchholz)
	assert.Equal(t, 3, rankings[2].Buchholz)
}

func TestEliminationTiers(t *testing.T) {
	semi1 := finished(1, 4, 3, 0)
	semi1.Round = 1
	semi2 := finished(2, 3, 3, 1)
	semi2.Round = 1
	final := finished(1, 2, 0, 2)
	final.Round = 2
	playoff := finished(4, 3, 1, 2)
	playoff.Round = 2
	playoff.Stage = models.StagePlayoff

	tiers := eliminationTiers([]*models.Match{semi1, semi2, final, playoff})
	assert.Equal(t, map[int]int{2: tierChampion, 1: tierRunnerUp, 3: tierPlayoffWin, 4: tierPlayoffLoss}, tiers)
}
