package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

func TestSeedPositions(t *testing.T) {
	assert.Equal(t, []int{1, 4, 2, 3}, seedPositions(4))
	assert.Equal(t, []int{1, 8, 4, 5, 2, 7, 3, 6}, seedPositions(8))
}

func TestSingleEliminationShape(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 300).Draw(t, "n")
		playoff := rapid.Bool().Draw(t, "playoff")
		cfg := models.DefaultCompetitionConfig()
		cfg.ThirdPlacePlayoff = playoff

		matches := generate(t, models.FormatSingleElimination, cfg, ids(n))

		main := 0
		playoffs := 0
		maxRound := 0
		for _, m := range matches {
			switch m.Stage {
			case models.StageMain:
				main++
			case models.StagePlayoff:
				playoffs++
			}
			if m.Round > maxRound {
				maxRound = m.Round
			}
			if m.Round == 1 && (m.Participant1ID == nil || m.Participant2ID == nil) {
				t.Fatalf("round 1 match %s is not fully populated", m.UID)
			}
			if m.IsBye {
				t.Fatalf("bye match %s generated", m.UID)
			}
		}
		if main != n-1 {
			t.Fatalf("n=%d: %d main matches, want %d", n, main, n-1)
		}
		if maxRound != EliminationRounds(n) {
			t.Fatalf("n=%d: %d rounds, want %d", n, maxRound, EliminationRounds(n))
		}
		if playoffs > 1 || (!playoff && playoffs == 1) {
			t.Fatalf("n=%d playoff=%v: %d playoff matches", n, playoff, playoffs)
		}
		if playoff && n >= 4 && playoffs != 1 {
			t.Fatalf("n=%d: third place playoff missing", n)
		}
	})
}

func TestSingleEliminationByesGoToRoundTwo(t *testing.T) {
	cfg := models.DefaultCompetitionConfig()
	cfg.ThirdPlacePlayoff = false
	matches := generate(t, models.FormatSingleElimination, cfg, ids(5))

	require.Len(t, matches, 4)
	r1 := matches[0]
	assert.Equal(t, 1, r1.Round)
	assert.Equal(t, 4, *r1.Participant1ID)
	assert.Equal(t, 5, *r1.Participant2ID)

	// seed 1 waits for the winner of 4 v 5; seeds 2 and 3 meet directly
	semi1, semi2 := matches[1], matches[2]
	assert.Equal(t, 2, semi1.Round)
	assert.Equal(t, 1, *semi1.Participant1ID)
	require.NotNil(t, semi1.Source2UID)
	assert.Equal(t, r1.UID, *semi1.Source2UID)
	assert.Equal(t, models.OutcomeWinner, semi1.Source2Outcome)
	assert.Equal(t, 2, *semi2.Participant1ID)
	assert.Equal(t, 3, *semi2.Participant2ID)

	final := matches[3]
	assert.Equal(t, 3, final.Round)
	assert.Equal(t, semi1.UID, *final.Source1UID)
	assert.Equal(t, semi2.UID, *final.Source2UID)
}

func TestSingleEliminationLargeField(t *testing.T) {
	matches := generate(t, models.FormatSingleElimination, models.DefaultCompetitionConfig(), ids(1024))

	require.Len(t, matches, 1024)
	last := matches[len(matches)-1]
	assert.Equal(t, models.StagePlayoff, last.Stage)
	assert.Equal(t, models.OutcomeLoser, last.Source1Outcome)
	assert.Equal(t, 10, last.Round)
}
