package models

// Format is the competition structure.
type Format string

const (
	FormatRoundRobin        Format = "ROUND_ROBIN"
	FormatSingleElimination Format = "SINGLE_ELIMINATION"
	FormatGroupKnockout     Format = "GROUP_PLUS_KNOCKOUT"
	FormatSwiss             Format = "SWISS"
)

var AllFormats = []Format{FormatRoundRobin, FormatSingleElimination, FormatGroupKnockout, FormatSwiss}

func (f Format) Valid() bool {
	for _, known := range AllFormats {
		if f == known {
			return true
		}
	}
	return false
}

// IsElimination reports whether losing a match can knock a participant out.
func (f Format) IsElimination() bool {
	return f == FormatSingleElimination || f == FormatGroupKnockout
}

// ScoringMode describes how a match result payload is read.
type ScoringMode string

const (
	ScoringScoreBased    ScoringMode = "SCORE_BASED"
	ScoringTimeBased     ScoringMode = "TIME_BASED"
	ScoringDistanceBased ScoringMode = "DISTANCE_BASED"
	ScoringPlacement     ScoringMode = "PLACEMENT"
	ScoringRoundsBased   ScoringMode = "ROUNDS_BASED"
)

var AllScoringModes = []ScoringMode{ScoringScoreBased, ScoringTimeBased, ScoringDistanceBased, ScoringPlacement, ScoringRoundsBased}

func (m ScoringMode) Valid() bool {
	for _, known := range AllScoringModes {
		if m == known {
			return true
		}
	}
	return false
}

// LowerIsBetter is true for modes where the smaller value wins (e.g. a race time).
func (m ScoringMode) LowerIsBetter() bool {
	return m == ScoringTimeBased
}
