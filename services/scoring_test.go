package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

func TestEvaluateResult(t *testing.T) {
	values := func(a, b float64) *models.MatchResult {
		return &models.MatchResult{Value1: &a, Value2: &b}
	}
	placements := func(a, b int) *models.MatchResult {
		return &models.MatchResult{Placement1: &a, Placement2: &b}
	}

	tests := []struct {
		name    string
		mode    models.ScoringMode
		result  *models.MatchResult
		want    int
		wantErr bool
	}{
		{"score higher wins", models.ScoringScoreBased, values(3, 1), side1, false},
		{"score draw", models.ScoringScoreBased, values(2, 2), sideDraw, false},
		{"score negative", models.ScoringScoreBased, values(-1, 2), 0, true},
		{"score missing value", models.ScoringScoreBased, &models.MatchResult{Value1: floatPtr(1)}, 0, true},
		{"score NaN", models.ScoringScoreBased, values(math.NaN(), 1), 0, true},
		{"time lower wins", models.ScoringTimeBased, values(12.4, 11.9), side2, false},
		{"time zero", models.ScoringTimeBased, values(0, 11.9), 0, true},
		{"distance higher wins", models.ScoringDistanceBased, values(7.31, 7.02), side1, false},
		{"rounds integral", models.ScoringRoundsBased, values(2, 3), side2, false},
		{"rounds fractional", models.ScoringRoundsBased, values(2.5, 3), 0, true},
		{"placement first wins", models.ScoringPlacement, placements(1, 2), side1, false},
		{"placement shared", models.ScoringPlacement, placements(1, 1), sideDraw, false},
		{"placement out of range", models.ScoringPlacement, placements(3, 1), 0, true},
		{"placement given values", models.ScoringPlacement, values(1, 2), 0, true},
		{"nil payload", models.ScoringScoreBased, nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateResult(tt.mode, tt.result)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResult)
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateResultUnknownMode(t *testing.T) {
	_, err := evaluateResult("STYLE_POINTS", &models.MatchResult{})
	assert.ErrorIs(t, err, ErrInvalidScoringMode)
}
