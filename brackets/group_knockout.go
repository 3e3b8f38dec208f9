package brackets

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

// GroupKnockoutGenerator generates the group stage only. The knockout bracket is built
// by GenerateKnockout once every group match is finalized.
type GroupKnockoutGenerator struct{}

func NewGroupKnockoutGenerator() BracketGenerator {
	return &GroupKnockoutGenerator{}
}

func (g *GroupKnockoutGenerator) GetName() string {
	return "GroupPlusKnockout"
}

func (g *GroupKnockoutGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	if len(participants) < 4 {
		return nil, fmt.Errorf("%w: group plus knockout needs at least 4, got %d", ErrNotEnoughParticipants, len(participants))
	}
	if err := checkDistinct(participants); err != nil {
		return nil, err
	}

	groups, err := SplitGroups(participants, params.Config.GroupCount, params.Config.QualifiersPerGroup)
	if err != nil {
		return nil, err
	}

	var matches []*BracketMatch
	for gi, members := range groups {
		idx := gi
		matches = append(matches, roundRobinMatches(members, params.Config.Legs, models.StageGroup, &idx, fmt.Sprintf("G%d", gi+1))...)
	}
	SortMatches(matches)
	return matches, nil
}

// DefaultGroupCount aims for groups of four.
func DefaultGroupCount(n int) int {
	if n/4 < 1 {
		return 1
	}
	return n / 4
}

// SplitGroups snake-seeds participants into groupCount groups so each group gets a
// comparable spread of seeds.
func SplitGroups(seeded []int, groupCount, qualifiers int) ([][]int, error) {
	n := len(seeded)
	if groupCount == 0 {
		groupCount = DefaultGroupCount(n)
	}
	if qualifiers == 0 {
		qualifiers = 2
	}
	if groupCount < 1 || groupCount > n/2 {
		return nil, fmt.Errorf("%w: %d groups for %d participants leaves a group with fewer than 2", ErrInvalidGroupLayout, groupCount, n)
	}
	smallest := n / groupCount
	if qualifiers < 1 || qualifiers > smallest {
		return nil, fmt.Errorf("%w: %d qualifiers per group but smallest group has %d", ErrInvalidGroupLayout, qualifiers, smallest)
	}
	if groupCount*qualifiers < 2 {
		return nil, fmt.Errorf("%w: knockout needs at least 2 qualifiers", ErrInvalidGroupLayout)
	}

	groups := make([][]int, groupCount)
	for i, pid := range seeded {
		row, col := i/groupCount, i%groupCount
		if row%2 == 1 {
			col = groupCount - 1 - col
		}
		groups[col] = append(groups[col], pid)
	}
	return groups, nil
}

// GroupRounds returns the number of rounds the group stage occupies, so knockout
// rounds can be numbered after it.
func GroupRounds(groups [][]int, legs int) int {
	if legs < 1 {
		legs = 1
	}
	max := 0
	for _, g := range groups {
		size := len(g)
		if size%2 == 1 {
			size++
		}
		if r := (size - 1) * legs; r > max {
			max = r
		}
	}
	return max
}

// GenerateKnockout seeds the knockout from final group standings. standings[g] lists
// group g's participants best first. Group winners take the top seeds, then each
// finishing position in turn. Within a position the groups are reordered so that
// qualifiers from the same group meet as late as the bracket allows.
func GenerateKnockout(standings [][]int, qualifiers, roundOffset int, playoff bool) ([]*BracketMatch, error) {
	if qualifiers < 1 {
		return nil, fmt.Errorf("%w: qualifiers per group must be positive", ErrInvalidGroupLayout)
	}
	seeded := make([]int, 0, len(standings)*qualifiers)
	for pos := 0; pos < qualifiers; pos++ {
		for g, table := range standings {
			if pos >= len(table) {
				return nil, fmt.Errorf("%w: group %d has only %d participants", ErrInvalidGroupLayout, g+1, len(table))
			}
			seeded = append(seeded, table[pos])
		}
	}
	if len(seeded) < 2 {
		return nil, fmt.Errorf("%w: knockout needs at least 2 qualifiers, got %d", ErrNotEnoughParticipants, len(seeded))
	}
	if err := checkDistinct(seeded); err != nil {
		return nil, err
	}
	separateGroups(seeded, len(standings))

	matches, err := buildEliminationBracket(seeded, models.StageKnockout, "KO", roundOffset, playoff)
	if err != nil {
		return nil, err
	}
	SortMatches(matches)
	return matches, nil
}

// separateGroups permutes each tier of groupCount seeds after the first, where
// seeded[i] came from group i%groupCount, until no swap within a tier lowers
// groupClashes. Swaps are tried in index order, so the result is deterministic.
func separateGroups(seeded []int, groupCount int) {
	n := len(seeded)
	rounds := EliminationRounds(n)
	slot := make([]int, n)
	for i, seed := range seedPositions(1 << rounds) {
		if seed <= n {
			slot[seed-1] = i
		}
	}
	group := make([]int, n)
	for i := range group {
		group[i] = i % groupCount
	}

	best := groupClashes(group, slot, rounds)
	for improved := true; improved; {
		improved = false
		for tier := groupCount; tier < n; tier += groupCount {
			end := tier + groupCount
			if end > n {
				end = n
			}
			for i := tier; i < end; i++ {
				for j := i + 1; j < end; j++ {
					group[i], group[j] = group[j], group[i]
					if c := groupClashes(group, slot, rounds); c < best {
						best = c
						improved = true
						seeded[i], seeded[j] = seeded[j], seeded[i]
						continue
					}
					group[i], group[j] = group[j], group[i]
				}
			}
		}
	}
}

// groupClashes weighs every same-group pair by how early the two can meet: a
// first-round meeting costs 1<<(rounds-1), a meeting in the final costs 1.
func groupClashes(group, slot []int, rounds int) int {
	total := 0
	for a := range group {
		for b := a + 1; b < len(group); b++ {
			if group[a] != group[b] {
				continue
			}
			meet := bits.Len(uint(slot[a] ^ slot[b]))
			total += 1 << (rounds - meet)
		}
	}
	return total
}
