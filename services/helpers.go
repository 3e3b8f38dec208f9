package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/football-investment/practice-booking-system-sub003/repositories"
)

// EventPublisher receives competition events after their transaction commits.
type EventPublisher interface {
	Publish(competitionID int, eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(int, string, interface{}) {}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// handleRepositoryError maps repository sentinels onto the service taxonomy.
func handleRepositoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrCompetitionNotFound):
		return ErrCompetitionNotFound
	case errors.Is(err, repositories.ErrEnrollmentNotFound):
		return ErrEnrollmentNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrTaskNotFound):
		return ErrTaskNotFound
	case errors.Is(err, repositories.ErrUniqueViolation):
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return err
}

func participantIDs(enrollments []*models.Enrollment) []int {
	out := make([]int, len(enrollments))
	for i, e := range enrollments {
		out[i] = e.ParticipantID
	}
	return out
}
