package services

import (
	"sort"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
)

// standing is the running table entry of one participant.
type standing struct {
	participantID int
	points        int
	wins          int
	draws         int
	losses        int
	scoreFor      float64
	scoreAgainst  float64
	opponents     []int
	hadBye        bool

	buchholz int
	tier     int
}

func (s *standing) difference(lowerIsBetter bool) float64 {
	if lowerIsBetter {
		return s.scoreAgainst - s.scoreFor
	}
	return s.scoreFor - s.scoreAgainst
}

// tally builds standings for participants from the finalized matches accepted by include.
func tally(mode models.ScoringMode, rule models.PointsRule, participants []int, matches []*models.Match, include func(*models.Match) bool) map[int]*standing {
	table := make(map[int]*standing, len(participants))
	for _, pid := range participants {
		table[pid] = &standing{participantID: pid}
	}
	get := func(pid int) *standing {
		s, ok := table[pid]
		if !ok {
			s = &standing{participantID: pid}
			table[pid] = s
		}
		return s
	}

	for _, m := range matches {
		if !m.Finalized || (include != nil && !include(m)) {
			continue
		}
		if m.IsBye {
			if m.WinnerID != nil {
				s := get(*m.WinnerID)
				s.wins++
				s.points += rule.Win
				s.hadBye = true
			}
			continue
		}
		if !m.Ready() {
			continue
		}
		s1, s2 := get(*m.Participant1ID), get(*m.Participant2ID)
		s1.opponents = append(s1.opponents, s2.participantID)
		s2.opponents = append(s2.opponents, s1.participantID)

		if m.Result != nil && mode != models.ScoringPlacement && m.Result.Value1 != nil && m.Result.Value2 != nil {
			v1, v2 := *m.Result.Value1, *m.Result.Value2
			s1.scoreFor += v1
			s1.scoreAgainst += v2
			s2.scoreFor += v2
			s2.scoreAgainst += v1
		}

		switch {
		case m.WinnerID == nil:
			s1.draws++
			s2.draws++
			s1.points += rule.Draw
			s2.points += rule.Draw
		case *m.WinnerID == s1.participantID:
			s1.wins++
			s2.losses++
			s1.points += rule.Win
			s2.points += rule.Loss
		default:
			s2.wins++
			s1.losses++
			s2.points += rule.Win
			s1.points += rule.Loss
		}
	}

	for _, s := range table {
		s.buchholz = 0
		for _, opp := range s.opponents {
			s.buchholz += table[opp].points
		}
	}
	return table
}

// tableLess orders a league table: points, difference, score for, wins, participant ID.
func tableLess(a, b *standing, lowerIsBetter bool) bool {
	if a.points != b.points {
		return a.points > b.points
	}
	if da, db := a.difference(lowerIsBetter), b.difference(lowerIsBetter); da != db {
		return da > db
	}
	if a.scoreFor != b.scoreFor {
		if lowerIsBetter {
			return a.scoreFor < b.scoreFor
		}
		return a.scoreFor > b.scoreFor
	}
	if a.wins != b.wins {
		return a.wins > b.wins
	}
	return a.participantID < b.participantID
}

func swissLess(a, b *standing, lowerIsBetter bool) bool {
	if a.points != b.points {
		return a.points > b.points
	}
	if a.buchholz != b.buchholz {
		return a.buchholz > b.buchholz
	}
	if da, db := a.difference(lowerIsBetter), b.difference(lowerIsBetter); da != db {
		return da > db
	}
	return a.participantID < b.participantID
}

// tierLess orders elimination placements; lower tier is better.
func tierLess(a, b *standing, lowerIsBetter bool) bool {
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	if da, db := a.difference(lowerIsBetter), b.difference(lowerIsBetter); da != db {
		return da > db
	}
	if a.scoreFor != b.scoreFor {
		if lowerIsBetter {
			return a.scoreFor < b.scoreFor
		}
		return a.scoreFor > b.scoreFor
	}
	return a.participantID < b.participantID
}

func groupKnockoutLess(a, b *standing, lowerIsBetter bool) bool {
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	if a.points != b.points {
		return a.points > b.points
	}
	if da, db := a.difference(lowerIsBetter), b.difference(lowerIsBetter); da != db {
		return da > db
	}
	return a.participantID < b.participantID
}

const (
	tierChampion     = 0
	tierRunnerUp     = 1
	tierPlayoffWin   = 2
	tierPlayoffLoss  = 3
	tierEliminated   = 4
	tierNonQualifier = 1000
)

// eliminationTiers assigns each bracket participant a placement tier. Losing in a
// later round gives a better tier.
func eliminationTiers(matches []*models.Match) map[int]int {
	tiers := make(map[int]int)
	maxRound := 0
	for _, m := range matches {
		if m.Stage != models.StagePlayoff && m.Round > maxRound {
			maxRound = m.Round
		}
	}

	for _, m := range matches {
		if m.Stage == models.StagePlayoff || !m.Finalized || m.WinnerID == nil {
			continue
		}
		if loser := m.LoserID(); loser != nil {
			tiers[*loser] = tierEliminated + (maxRound - m.Round)
		}
		if m.Round == maxRound {
			tiers[*m.WinnerID] = tierChampion
			if loser := m.LoserID(); loser != nil {
				tiers[*loser] = tierRunnerUp
			}
		}
	}
	for _, m := range matches {
		if m.Stage != models.StagePlayoff || !m.Finalized || m.WinnerID == nil {
			continue
		}
		tiers[*m.WinnerID] = tierPlayoffWin
		if loser := m.LoserID(); loser != nil {
			tiers[*loser] = tierPlayoffLoss
		}
	}
	return tiers
}

// groupTables returns each group's participants in table order.
func groupTables(mode models.ScoringMode, rule models.PointsRule, matches []*models.Match) [][]int {
	members := map[int]map[int]bool{}
	groupCount := 0
	for _, m := range matches {
		if m.Stage != models.StageGroup || m.GroupIndex == nil {
			continue
		}
		g := *m.GroupIndex
		if g+1 > groupCount {
			groupCount = g + 1
		}
		if members[g] == nil {
			members[g] = map[int]bool{}
		}
		for _, p := range []*int{m.Participant1ID, m.Participant2ID} {
			if p != nil {
				members[g][*p] = true
			}
		}
	}

	tables := make([][]int, groupCount)
	for g := 0; g < groupCount; g++ {
		ids := make([]int, 0, len(members[g]))
		for pid := range members[g] {
			ids = append(ids, pid)
		}
		group := g
		table := tally(mode, rule, ids, matches, func(m *models.Match) bool {
			return m.Stage == models.StageGroup && m.GroupIndex != nil && *m.GroupIndex == group
		})
		rows := make([]*standing, 0, len(ids))
		for _, pid := range ids {
			rows = append(rows, table[pid])
		}
		sort.Slice(rows, func(i, j int) bool { return tableLess(rows[i], rows[j], mode.LowerIsBetter()) })
		for _, r := range rows {
			tables[g] = append(tables[g], r.participantID)
		}
	}
	return tables
}

// swissStandings feeds the pairing of the next Swiss round.
func swissStandings(mode models.ScoringMode, rule models.PointsRule, participants []int, matches []*models.Match) ([]brackets.SwissStanding, map[[2]int]bool) {
	table := tally(mode, rule, participants, matches, func(m *models.Match) bool { return m.Stage == models.StageSwiss })
	played := make(map[[2]int]bool)
	for _, m := range matches {
		if m.Stage == models.StageSwiss && m.Ready() {
			played[brackets.PairKey(*m.Participant1ID, *m.Participant2ID)] = true
		}
	}
	out := make([]brackets.SwissStanding, 0, len(participants))
	for _, pid := range participants {
		s := table[pid]
		out = append(out, brackets.SwissStanding{ParticipantID: pid, Points: float64(s.points), HadBye: s.hadBye})
	}
	return out, played
}

// ComputeRankings produces a fully ordered ranking for a competition whose matches are
// all finalized. Ranks are unique positions; Tied marks participants whose primary
// ordering key equals a neighbour's.
func ComputeRankings(c *models.Competition, participants []int, matches []*models.Match, now time.Time) []*models.Ranking {
	mode := c.ScoringMode
	lower := mode.LowerIsBetter()
	table := tally(mode, c.Config.Points, participants, matches, nil)

	var (
		less    func(a, b *standing, lowerIsBetter bool) bool
		primary func(s *standing) int
	)

	switch c.Format {
	case models.FormatSwiss:
		less = swissLess
		primary = func(s *standing) int { return s.points }

	case models.FormatSingleElimination:
		tiers := eliminationTiers(matches)
		for pid, s := range table {
			s.tier = tiers[pid]
		}
		less = tierLess
		primary = func(s *standing) int { return s.tier }

	case models.FormatGroupKnockout:
		var knockout []*models.Match
		for _, m := range matches {
			if m.Stage == models.StageKnockout || m.Stage == models.StagePlayoff {
				knockout = append(knockout, m)
			}
		}
		tiers := eliminationTiers(knockout)
		positions := map[int]int{}
		for _, group := range groupTables(mode, c.Config.Points, matches) {
			for pos, pid := range group {
				positions[pid] = pos
			}
		}
		for pid, s := range table {
			if t, ok := tiers[pid]; ok {
				s.tier = t
			} else {
				s.tier = tierNonQualifier + positions[pid]
			}
		}
		less = groupKnockoutLess
		primary = func(s *standing) int { return s.tier }

	default:
		less = tableLess
		primary = func(s *standing) int { return s.points }
	}

	rows := make([]*standing, 0, len(participants))
	for _, pid := range participants {
		rows = append(rows, table[pid])
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j], lower) })

	out := make([]*models.Ranking, len(rows))
	for i, s := range rows {
		tied := (i > 0 && primary(rows[i-1]) == primary(s)) || (i+1 < len(rows) && primary(rows[i+1]) == primary(s))
		rk := &models.Ranking{
			CompetitionID:   c.ID,
			ParticipantID:   s.participantID,
			Rank:            i + 1,
			Points:          s.points,
			Wins:            s.wins,
			Draws:           s.draws,
			Losses:          s.losses,
			ScoreFor:        s.scoreFor,
			ScoreAgainst:    s.scoreAgainst,
			ScoreDifference: s.difference(lower),
			Tied:            tied,
			ComputedAt:      now,
		}
		if c.Format == models.FormatSwiss {
			rk.Buchholz = s.buchholz
		}
		out[i] = rk
	}
	return out
}
