package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

var allowedTransitions = map[models.CompetitionStatus][]models.CompetitionStatus{
	models.StatusDraft:              {models.StatusEnrolling},
	models.StatusEnrolling:          {models.StatusInProgress},
	models.StatusInProgress:         {models.StatusCompleted},
	models.StatusCompleted:          {models.StatusRewardsDistributed},
	models.StatusRewardsDistributed: {models.StatusArchived},
	models.StatusArchived:           {},
}

func isValidStatusTransition(current, next models.CompetitionStatus) bool {
	for _, allowed := range allowedTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}

// transition moves c to next. Callers must persist c before reading anything that
// depends on the new status.
func transition(c *models.Competition, next models.CompetitionStatus, now time.Time) error {
	if !isValidStatusTransition(c.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, c.Status, next)
	}
	c.Status = next
	c.UpdatedAt = now
	return nil
}

// markSessionsGenerated closes the generation gate and moves c into play.
func markSessionsGenerated(c *models.Competition, at time.Time) error {
	if err := transition(c, models.StatusInProgress, at); err != nil {
		return err
	}
	c.SessionsGenerated = true
	c.SessionsGeneratedAt = &at
	return nil
}

// requireStatus returns base wrapped with the current and expected statuses when c
// is not in one of allowed.
func requireStatus(c *models.Competition, base error, allowed ...models.CompetitionStatus) error {
	for _, s := range allowed {
		if c.Status == s {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Errorf("%w: competition %d is %s, requires %s", base, c.ID, c.Status, strings.Join(names, " or "))
}
