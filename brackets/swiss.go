package brackets

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

// backtrackBudget caps the rematch-avoiding search before falling back to greedy pairing.
const backtrackBudget = 20000

type SwissGenerator struct{}

func NewSwissGenerator() BracketGenerator {
	return &SwissGenerator{}
}

func (g *SwissGenerator) GetName() string {
	return "Swiss"
}

// GenerateBracket pairs round 1 only. Round k+1 is paired by NextSwissRound after
// round k is fully finalized.
func (g *SwissGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	if len(participants) < 2 {
		return nil, fmt.Errorf("%w: swiss needs at least 2, got %d", ErrNotEnoughParticipants, len(participants))
	}
	if err := checkDistinct(participants); err != nil {
		return nil, err
	}

	order := append([]int(nil), participants...)
	if params.Config.Seed != 0 {
		rng := rand.New(rand.NewSource(params.Config.Seed))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var bye *int
	if len(order)%2 == 1 {
		last := order[len(order)-1]
		bye = &last
		order = order[:len(order)-1]
	}

	half := len(order) / 2
	matches := make([]*BracketMatch, 0, half+1)
	for i := 0; i < half; i++ {
		matches = append(matches, swissMatch(1, i+1, order[i], order[i+half]))
	}
	if bye != nil {
		matches = append(matches, swissBye(1, half+1, *bye))
	}
	return matches, nil
}

// SwissRounds returns the configured round count, defaulting to ceil(log2 n) and
// capped at n-1 so a rematch-free schedule stays possible.
func SwissRounds(n int, cfg models.CompetitionConfig) int {
	rounds := cfg.SwissRounds
	if rounds == 0 {
		rounds = EliminationRounds(n)
	}
	if rounds > n-1 {
		rounds = n - 1
	}
	if rounds < 1 {
		rounds = 1
	}
	return rounds
}

// SwissStanding is a participant's running total going into the next round.
type SwissStanding struct {
	ParticipantID int
	Points        float64
	HadBye        bool
}

// PairKey is an unordered pair used to look up previous meetings.
func PairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// NextSwissRound pairs participants of similar score, avoiding rematches when
// possible. With an odd field the lowest-ranked participant without a bye sits out.
func NextSwissRound(round int, standings []SwissStanding, played map[[2]int]bool) ([]*BracketMatch, error) {
	if len(standings) < 2 {
		return nil, fmt.Errorf("%w: swiss round needs at least 2, got %d", ErrNotEnoughParticipants, len(standings))
	}
	table := append([]SwissStanding(nil), standings...)
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].Points != table[j].Points {
			return table[i].Points > table[j].Points
		}
		return table[i].ParticipantID < table[j].ParticipantID
	})

	var bye *int
	if len(table)%2 == 1 {
		idx := len(table) - 1
		for i := len(table) - 1; i >= 0; i-- {
			if !table[i].HadBye {
				idx = i
				break
			}
		}
		pid := table[idx].ParticipantID
		bye = &pid
		table = append(table[:idx], table[idx+1:]...)
	}

	ids := make([]int, len(table))
	for i, s := range table {
		ids[i] = s.ParticipantID
	}

	budget := backtrackBudget
	pairs, ok := pairAvoidingRematches(ids, played, &budget)
	if !ok {
		pairs = pairGreedy(ids, played)
	}

	matches := make([]*BracketMatch, 0, len(pairs)+1)
	for i, p := range pairs {
		matches = append(matches, swissMatch(round, i+1, p[0], p[1]))
	}
	if bye != nil {
		matches = append(matches, swissBye(round, len(pairs)+1, *bye))
	}
	return matches, nil
}

func pairAvoidingRematches(ids []int, played map[[2]int]bool, budget *int) ([][2]int, bool) {
	if len(ids) == 0 {
		return nil, true
	}
	*budget--
	if *budget < 0 {
		return nil, false
	}
	first := ids[0]
	for i := 1; i < len(ids); i++ {
		if played[PairKey(first, ids[i])] {
			continue
		}
		rest := make([]int, 0, len(ids)-2)
		rest = append(rest, ids[1:i]...)
		rest = append(rest, ids[i+1:]...)
		if tail, ok := pairAvoidingRematches(rest, played, budget); ok {
			return append([][2]int{{first, ids[i]}}, tail...), true
		}
		if *budget < 0 {
			return nil, false
		}
	}
	return nil, false
}

// pairGreedy prefers a fresh opponent but accepts a rematch when none is left.
func pairGreedy(ids []int, played map[[2]int]bool) [][2]int {
	used := make([]bool, len(ids))
	pairs := make([][2]int, 0, len(ids)/2)
	for i := range ids {
		if used[i] {
			continue
		}
		partner := -1
		for j := i + 1; j < len(ids); j++ {
			if used[j] {
				continue
			}
			if partner == -1 {
				partner = j
			}
			if !played[PairKey(ids[i], ids[j])] {
				partner = j
				break
			}
		}
		if partner == -1 {
			break
		}
		used[i], used[partner] = true, true
		pairs = append(pairs, [2]int{ids[i], ids[partner]})
	}
	return pairs
}

func swissMatch(round, order, p1, p2 int) *BracketMatch {
	return &BracketMatch{
		UID:            fmt.Sprintf("SW-R%dM%d", round, order),
		Stage:          models.StageSwiss,
		Round:          round,
		OrderInRound:   order,
		Participant1ID: intPtr(p1),
		Participant2ID: intPtr(p2),
	}
}

func swissBye(round, order, pid int) *BracketMatch {
	return &BracketMatch{
		UID:            fmt.Sprintf("SW-R%dBYE", round),
		Stage:          models.StageSwiss,
		Round:          round,
		OrderInRound:   order,
		Participant1ID: intPtr(pid),
		IsBye:          true,
	}
}
