package brackets

import (
	"context"
	"fmt"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket schedules every pair exactly once per leg. With Legs=2 the second
// leg repeats the first with slots swapped, in later rounds.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2, got %d", ErrNotEnoughParticipants, len(participants))
	}
	if err := checkDistinct(participants); err != nil {
		return nil, err
	}

	matches := roundRobinMatches(participants, params.Config.Legs, models.StageMain, nil, "RR")
	SortMatches(matches)
	return matches, nil
}

// circleSchedule returns rounds of index pairs using the circle method. Each index
// appears at most once per round; with an odd count one index rests each round.
func circleSchedule(n int) [][][2]int {
	size := n
	if size%2 == 1 {
		size++
	}
	rot := make([]int, size)
	for i := range rot {
		rot[i] = i
	}

	rounds := make([][][2]int, 0, size-1)
	for r := 0; r < size-1; r++ {
		pairs := make([][2]int, 0, size/2)
		for i := 0; i < size/2; i++ {
			a, b := rot[i], rot[size-1-i]
			if a >= n || b >= n {
				continue
			}
			// alternate the fixed seat so nobody is always slot 1
			if i == 0 && r%2 == 1 {
				a, b = b, a
			}
			pairs = append(pairs, [2]int{a, b})
		}
		rounds = append(rounds, pairs)

		last := rot[size-1]
		copy(rot[2:], rot[1:size-1])
		rot[1] = last
	}
	return rounds
}

func roundRobinMatches(ids []int, legs int, stage models.MatchStage, group *int, prefix string) []*BracketMatch {
	if legs < 1 {
		legs = 1
	}
	schedule := circleSchedule(len(ids))
	matches := make([]*BracketMatch, 0, legs*len(ids)*(len(ids)-1)/2)

	for leg := 0; leg < legs; leg++ {
		for r, pairs := range schedule {
			round := leg*len(schedule) + r + 1
			for i, pair := range pairs {
				p1, p2 := ids[pair[0]], ids[pair[1]]
				if leg == 1 {
					p1, p2 = p2, p1
				}
				bm := &BracketMatch{
					UID:            fmt.Sprintf("%s-R%dM%d", prefix, round, i+1),
					Stage:          stage,
					Round:          round,
					OrderInRound:   i + 1,
					Participant1ID: intPtr(p1),
					Participant2ID: intPtr(p2),
				}
				if group != nil {
					bm.GroupIndex = intPtr(*group)
				}
				matches = append(matches, bm)
			}
		}
	}
	return matches
}
