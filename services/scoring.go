package services

import (
	"fmt"
	"math"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

const (
	sideDraw = 0
	side1    = 1
	side2    = 2
)

// evaluateResult validates a payload for the scoring mode and returns the winning side.
func evaluateResult(mode models.ScoringMode, r *models.MatchResult) (int, error) {
	if r == nil {
		return 0, fmt.Errorf("%w: result is required", ErrInvalidResult)
	}

	switch mode {
	case models.ScoringPlacement:
		if r.Placement1 == nil || r.Placement2 == nil {
			return 0, fmt.Errorf("%w: placement1 and placement2 are required for %s", ErrInvalidResult, mode)
		}
		p1, p2 := *r.Placement1, *r.Placement2
		if p1 < 1 || p1 > 2 || p2 < 1 || p2 > 2 {
			return 0, fmt.Errorf("%w: placements must be 1 or 2, got %d and %d", ErrInvalidResult, p1, p2)
		}
		return compareValues(float64(p1), float64(p2), true), nil

	case models.ScoringScoreBased, models.ScoringDistanceBased, models.ScoringRoundsBased, models.ScoringTimeBased:
		if r.Value1 == nil || r.Value2 == nil {
			return 0, fmt.Errorf("%w: value1 and value2 are required for %s", ErrInvalidResult, mode)
		}
		v1, v2 := *r.Value1, *r.Value2
		for _, v := range []float64{v1, v2} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: values must be finite", ErrInvalidResult)
			}
			if mode == models.ScoringTimeBased && v <= 0 {
				return 0, fmt.Errorf("%w: times must be positive, got %v", ErrInvalidResult, v)
			}
			if v < 0 {
				return 0, fmt.Errorf("%w: %s values must not be negative, got %v", ErrInvalidResult, mode, v)
			}
			if mode == models.ScoringRoundsBased && v != math.Trunc(v) {
				return 0, fmt.Errorf("%w: rounds won must be whole numbers, got %v", ErrInvalidResult, v)
			}
		}
		return compareValues(v1, v2, mode.LowerIsBetter()), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidScoringMode, mode)
}

func compareValues(v1, v2 float64, lowerIsBetter bool) int {
	switch {
	case v1 == v2:
		return sideDraw
	case (v1 > v2) != lowerIsBetter:
		return side1
	default:
		return side2
	}
}
