package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/brackets"
	"github.com/football-investment/practice-booking-system-sub003/models"
)

// RosterValidator is the gate in front of session generation.
type RosterValidator struct {
	matrix brackets.SupportMatrix
}

func NewRosterValidator(matrix brackets.SupportMatrix) *RosterValidator {
	if matrix == nil {
		matrix = brackets.DefaultSupportMatrix()
	}
	return &RosterValidator{matrix: matrix}
}

// EffectiveCount resolves the participant count from the optional requested value
// and the enrolled roster. It never validates; Validate does that on the result.
func EffectiveCount(requested *int, enrolled int) int {
	if requested != nil {
		return *requested
	}
	return enrolled
}

// Bounds intersects the format's schedulable range with the competition's capacity.
func Bounds(c *models.Competition) (int, int) {
	min, max := brackets.ParticipantBounds(c.Format)
	if c.MinParticipants > min {
		min = c.MinParticipants
	}
	if c.MaxParticipants > 0 && c.MaxParticipants < max {
		max = c.MaxParticipants
	}
	return min, max
}

// Validate checks that c may generate sessions for count participants. enrolled is the
// actual ACTIVE roster size; a requested count must agree with it.
func (v *RosterValidator) Validate(c *models.Competition, count, enrolled int) error {
	if c.SessionsGenerated {
		return alreadyGenerated(c)
	}
	if err := requireStatus(c, ErrState, models.StatusEnrolling); err != nil {
		return err
	}
	if err := v.CheckCombination(c.Format, c.ScoringMode); err != nil {
		return err
	}
	if count <= 0 {
		return fmt.Errorf("%w: %d participants", ErrInvalidParticipantCount, count)
	}
	if count != enrolled {
		return fmt.Errorf("%w: requested %d but %d are enrolled", ErrInvalidParticipantCount, count, enrolled)
	}
	min, max := Bounds(c)
	if count < min || count > max {
		return fmt.Errorf("%w: %s needs between %d and %d participants, got %d", ErrInvalidParticipantCount, c.Format, min, max, count)
	}
	return nil
}

// CheckCombination maps the capability table's verdict into the service taxonomy.
func (v *RosterValidator) CheckCombination(format models.Format, scoring models.ScoringMode) error {
	if !format.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
	if !scoring.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidScoringMode, scoring)
	}
	if err := v.matrix.Check(format, scoring); err != nil {
		if errors.Is(err, brackets.ErrUnsupportedCombination) {
			return fmt.Errorf("%w: %s with %s", ErrUnsupportedCombination, format, scoring)
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (v *RosterValidator) Matrix() brackets.SupportMatrix {
	return v.matrix
}

func alreadyGenerated(c *models.Competition) error {
	at := "unknown time"
	if c.SessionsGeneratedAt != nil {
		at = c.SessionsGeneratedAt.Format(time.RFC3339)
	}
	return fmt.Errorf("%w at %s", ErrSessionsAlreadyGenerated, at)
}
