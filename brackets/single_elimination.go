package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

// node is one slot of the bracket tree: either a known participant or the
// winner of an earlier match.
type node struct {
	participantID  *int
	sourceMatchUID *string
	isBye          bool
}

type SingleEliminationGenerator struct{}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket builds the whole tree up front. Later-round slots reference
// their feeding match and are filled as results come in.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: single elimination needs at least 2, got %d", ErrNotEnoughParticipants, len(participants))
	}
	if err := checkDistinct(participants); err != nil {
		return nil, err
	}

	matches, err := buildEliminationBracket(participants, models.StageMain, "SE", 0, params.Config.ThirdPlacePlayoff)
	if err != nil {
		return nil, err
	}
	SortMatches(matches)
	return matches, nil
}

// EliminationRounds is ceil(log2 n).
func EliminationRounds(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// seedPositions returns 1-based seeds in bracket order so that seed 1 and 2 can
// only meet in the final.
func seedPositions(size int) []int {
	positions := []int{1}
	for len(positions) < size {
		sum := len(positions)*2 + 1
		next := make([]int, 0, len(positions)*2)
		for _, s := range positions {
			next = append(next, s, sum-s)
		}
		positions = next
	}
	return positions
}

// buildEliminationBracket lays out a seeded bracket. Byes never produce a match: the
// seeded participant is placed straight into the round-2 slot, so every generated
// round-1 match is fully populated and n-1 matches decide the winner.
func buildEliminationBracket(seeded []int, stage models.MatchStage, prefix string, roundOffset int, playoff bool) ([]*BracketMatch, error) {
	n := len(seeded)
	rounds := EliminationRounds(n)
	size := 1 << rounds

	current := make([]*node, size)
	for i, seed := range seedPositions(size) {
		if seed <= n {
			pid := seeded[seed-1]
			current[i] = &node{participantID: &pid}
		} else {
			current[i] = &node{isBye: true}
		}
	}

	matches := make([]*BracketMatch, 0, n)
	var final *BracketMatch

	for r := 1; r <= rounds; r++ {
		next := make([]*node, 0, len(current)/2)
		order := 0

		for i := 0; i < len(current); i += 2 {
			n1, n2 := current[i], current[i+1]

			switch {
			case n1.isBye && n2.isBye:
				return nil, fmt.Errorf("round %d slot %d: two byes met", r, i/2+1)
			case n2.isBye:
				next = append(next, n1)
				continue
			case n1.isBye:
				next = append(next, n2)
				continue
			}

			order++
			uid := fmt.Sprintf("%s-R%dM%d", prefix, r, order)
			bm := &BracketMatch{
				UID:          uid,
				Stage:        stage,
				Round:        roundOffset + r,
				OrderInRound: order,
			}
			fillSlot(n1, &bm.Participant1ID, &bm.Source1UID, &bm.Source1Outcome)
			fillSlot(n2, &bm.Participant2ID, &bm.Source2UID, &bm.Source2Outcome)

			matches = append(matches, bm)
			next = append(next, &node{sourceMatchUID: strPtr(uid)})
			if r == rounds {
				final = bm
			}
		}
		current = next
	}

	if final == nil {
		return nil, fmt.Errorf("bracket for %d participants produced no final", n)
	}

	// Third place is only meaningful when both finalists come out of a played semifinal.
	if playoff && final.Source1UID != nil && final.Source2UID != nil && rounds >= 2 {
		matches = append(matches, &BracketMatch{
			UID:            prefix + "-PO",
			Stage:          models.StagePlayoff,
			Round:          roundOffset + rounds,
			OrderInRound:   final.OrderInRound + 1,
			Source1UID:     strPtr(*final.Source1UID),
			Source1Outcome: models.OutcomeLoser,
			Source2UID:     strPtr(*final.Source2UID),
			Source2Outcome: models.OutcomeLoser,
		})
	}

	return matches, nil
}

func fillSlot(n *node, participant **int, source **string, outcome *models.SlotOutcome) {
	if n.participantID != nil {
		*participant = n.participantID
		return
	}
	*source = n.sourceMatchUID
	*outcome = models.OutcomeWinner
}
