package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

var (
	ErrNotEnoughParticipants  = errors.New("not enough participants")
	ErrUnsupportedCombination = errors.New("format and scoring mode combination is not supported")
	ErrUnknownFormat          = errors.New("unknown competition format")
	ErrDuplicateParticipant   = errors.New("participant listed more than once")
	ErrInvalidGroupLayout     = errors.New("invalid group layout")
)

type GenerateBracketParams struct {
	CompetitionID int
	Format        models.Format
	Scoring       models.ScoringMode
	Config        models.CompetitionConfig
	// Participants in seed order (best seed first).
	Participants []int
}

// BracketGenerator builds the initial set of sessions for one format.
type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// BracketMatch is a generated session before it is persisted.
type BracketMatch struct {
	UID          string
	Stage        models.MatchStage
	GroupIndex   *int
	Round        int
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	Source1UID     *string
	Source1Outcome models.SlotOutcome
	Source2UID     *string
	Source2Outcome models.SlotOutcome

	IsBye bool
}

// NewGenerator returns the generator for a format.
func NewGenerator(format models.Format) (BracketGenerator, error) {
	switch format {
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	case models.FormatSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.FormatGroupKnockout:
		return NewGroupKnockoutGenerator(), nil
	case models.FormatSwiss:
		return NewSwissGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// SupportMatrix is the allow-list of implemented format/scoring combinations.
type SupportMatrix map[models.Format]map[models.ScoringMode]bool

// DefaultSupportMatrix lists every combination the generators and result ingestion implement.
func DefaultSupportMatrix() SupportMatrix {
	return SupportMatrix{
		models.FormatRoundRobin: {
			models.ScoringScoreBased:    true,
			models.ScoringTimeBased:     true,
			models.ScoringDistanceBased: true,
			models.ScoringPlacement:     true,
			models.ScoringRoundsBased:   true,
		},
		models.FormatSingleElimination: {
			models.ScoringScoreBased:    true,
			models.ScoringTimeBased:     true,
			models.ScoringDistanceBased: true,
			models.ScoringRoundsBased:   true,
		},
		models.FormatGroupKnockout: {
			models.ScoringScoreBased:    true,
			models.ScoringTimeBased:     true,
			models.ScoringDistanceBased: true,
		},
		models.FormatSwiss: {
			models.ScoringScoreBased:    true,
			models.ScoringTimeBased:     true,
			models.ScoringDistanceBased: true,
			models.ScoringPlacement:     true,
		},
	}
}

func (m SupportMatrix) Supports(format models.Format, scoring models.ScoringMode) bool {
	return m[format][scoring]
}

// Check fails closed for any pair that is not explicitly allowed.
func (m SupportMatrix) Check(format models.Format, scoring models.ScoringMode) error {
	if !format.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if !m.Supports(format, scoring) {
		return fmt.Errorf("%w: %s with %s", ErrUnsupportedCombination, format, scoring)
	}
	return nil
}

// Restrict narrows m to the given allow-list. Names are case-insensitive; entries m does
// not implement are rejected.
func (m SupportMatrix) Restrict(allow map[string][]string) (SupportMatrix, error) {
	if len(allow) == 0 {
		return m, nil
	}
	out := make(SupportMatrix, len(allow))
	for f, modes := range allow {
		format := models.Format(strings.ToUpper(f))
		for _, s := range modes {
			scoring := models.ScoringMode(strings.ToUpper(s))
			if !m.Supports(format, scoring) {
				return nil, fmt.Errorf("%w: %s with %s is not implemented", ErrUnsupportedCombination, format, scoring)
			}
			if out[format] == nil {
				out[format] = make(map[models.ScoringMode]bool)
			}
			out[format][scoring] = true
		}
	}
	return out, nil
}

// Pairs lists the allowed combinations in a stable order, for docs and error messages.
func (m SupportMatrix) Pairs() []string {
	var out []string
	for format, modes := range m {
		for mode, ok := range modes {
			if ok {
				out = append(out, string(format)+"/"+string(mode))
			}
		}
	}
	sort.Strings(out)
	return out
}

// ParticipantBounds returns the roster size range a format can schedule.
func ParticipantBounds(format models.Format) (min, max int) {
	switch format {
	case models.FormatRoundRobin:
		return 2, 256
	case models.FormatSingleElimination:
		return 2, 4096
	case models.FormatGroupKnockout:
		return 4, 1024
	case models.FormatSwiss:
		return 2, 4096
	}
	return 0, 0
}

func checkDistinct(ids []int) error {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateParticipant, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func intPtr(v int) *int {
	return &v
}

func strPtr(s string) *string {
	return &s
}

// SortMatches orders by round, then stage, then position within the round.
func SortMatches(matches []*BracketMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		if matches[i].Stage != matches[j].Stage {
			return stageOrder(matches[i].Stage) < stageOrder(matches[j].Stage)
		}
		gi, gj := groupOf(matches[i]), groupOf(matches[j])
		if gi != gj {
			return gi < gj
		}
		return matches[i].OrderInRound < matches[j].OrderInRound
	})
}

func stageOrder(s models.MatchStage) int {
	switch s {
	case models.StageGroup:
		return 0
	case models.StageKnockout, models.StageMain, models.StageSwiss:
		return 1
	case models.StagePlayoff:
		return 2
	}
	return 3
}

func groupOf(m *BracketMatch) int {
	if m.GroupIndex == nil {
		return -1
	}
	return *m.GroupIndex
}
