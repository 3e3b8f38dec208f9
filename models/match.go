package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MatchStage separates the phases of multi-stage formats.
type MatchStage string

const (
	StageMain     MatchStage = "MAIN"
	StageGroup    MatchStage = "GROUP"
	StageKnockout MatchStage = "KNOCKOUT"
	StagePlayoff  MatchStage = "PLAYOFF"
	StageSwiss    MatchStage = "SWISS"
)

// IsElimination reports whether the stage's matches advance winners through a bracket.
func (s MatchStage) IsElimination(format Format) bool {
	switch s {
	case StageKnockout, StagePlayoff:
		return true
	case StageMain:
		return format == FormatSingleElimination
	}
	return false
}

// SlotOutcome says which side of a source match feeds a slot.
type SlotOutcome string

const (
	OutcomeWinner SlotOutcome = "winner"
	OutcomeLoser  SlotOutcome = "loser"
)

// MatchResult is the submitted payload. Values carry score, time, distance or rounds won
// depending on the competition's scoring mode; placements are used by PLACEMENT scoring.
type MatchResult struct {
	Value1     *float64 `json:"value1,omitempty"`
	Value2     *float64 `json:"value2,omitempty"`
	Placement1 *int     `json:"placement1,omitempty"`
	Placement2 *int     `json:"placement2,omitempty"`
}

// Value encodes as text; lib/pq would send []byte as bytea.
func (r MatchResult) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *MatchResult) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into MatchResult", src)
	}
}

// Match is one session between up to two participants.
type Match struct {
	ID            int        `json:"id" db:"id"`
	CompetitionID int        `json:"competition_id" db:"competition_id"`
	Stage         MatchStage `json:"stage" db:"stage"`
	GroupIndex    *int       `json:"group_index,omitempty" db:"group_index"`
	Round         int        `json:"round" db:"round"`
	OrderInRound  int        `json:"order_in_round" db:"order_in_round"`
	BracketUID    string     `json:"bracket_uid" db:"bracket_uid"`

	Participant1ID *int `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID *int `json:"participant2_id,omitempty" db:"participant2_id"`

	// Source*UID point at the match whose winner (or loser) fills the slot later.
	Source1UID     *string     `json:"source1_uid,omitempty" db:"source1_uid"`
	Source1Outcome SlotOutcome `json:"source1_outcome,omitempty" db:"source1_outcome"`
	Source2UID     *string     `json:"source2_uid,omitempty" db:"source2_uid"`
	Source2Outcome SlotOutcome `json:"source2_outcome,omitempty" db:"source2_outcome"`

	IsBye       bool         `json:"is_bye" db:"is_bye"`
	Result      *MatchResult `json:"result,omitempty" db:"result"`
	WinnerID    *int         `json:"winner_id,omitempty" db:"winner_id"`
	Finalized   bool         `json:"finalized" db:"finalized"`
	FinalizedAt *time.Time   `json:"finalized_at,omitempty" db:"finalized_at"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// Ready reports whether both slots are resolved so a result may be entered.
func (m *Match) Ready() bool {
	return m.Participant1ID != nil && m.Participant2ID != nil
}

// LoserID returns the non-winning participant of a decided two-sided match.
func (m *Match) LoserID() *int {
	if m.WinnerID == nil || !m.Ready() {
		return nil
	}
	if *m.WinnerID == *m.Participant1ID {
		return m.Participant2ID
	}
	return m.Participant1ID
}

// Clone returns a copy that shares no pointers with m.
func (m *Match) Clone() *Match {
	out := *m
	out.GroupIndex = cloneInt(m.GroupIndex)
	out.Participant1ID = cloneInt(m.Participant1ID)
	out.Participant2ID = cloneInt(m.Participant2ID)
	out.WinnerID = cloneInt(m.WinnerID)
	if m.Source1UID != nil {
		s := *m.Source1UID
		out.Source1UID = &s
	}
	if m.Source2UID != nil {
		s := *m.Source2UID
		out.Source2UID = &s
	}
	if m.FinalizedAt != nil {
		t := *m.FinalizedAt
		out.FinalizedAt = &t
	}
	if m.Result != nil {
		r := MatchResult{
			Value1:     cloneFloat(m.Result.Value1),
			Value2:     cloneFloat(m.Result.Value2),
			Placement1: cloneInt(m.Result.Placement1),
			Placement2: cloneInt(m.Result.Placement2),
		}
		out.Result = &r
	}
	return &out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
