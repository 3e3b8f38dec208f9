package services

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them, so callers
// can branch with errors.Is(err, ErrState) and still print the precise reason.
var (
	ErrNotFound    = errors.New("requested resource not found")
	ErrValidation  = errors.New("validation failed")
	ErrState       = errors.New("operation not allowed in current state")
	ErrConcurrency = errors.New("concurrent duplicate operation")
	ErrIntegrity   = errors.New("integrity constraint violated")
)

var (
	ErrCompetitionNotFound = fmt.Errorf("%w: competition not found", ErrNotFound)
	ErrEnrollmentNotFound  = fmt.Errorf("%w: enrollment not found", ErrNotFound)
	ErrMatchNotFound       = fmt.Errorf("%w: match not found", ErrNotFound)
	ErrTaskNotFound        = fmt.Errorf("%w: generation task not found", ErrNotFound)
	ErrRankingsNotFound    = fmt.Errorf("%w: rankings have not been calculated", ErrNotFound)

	ErrCompetitionNameRequired = fmt.Errorf("%w: competition name is required", ErrValidation)
	ErrInvalidFormat           = fmt.Errorf("%w: unknown format", ErrValidation)
	ErrInvalidScoringMode      = fmt.Errorf("%w: unknown scoring mode", ErrValidation)
	ErrUnsupportedCombination  = fmt.Errorf("%w: format and scoring mode combination is not supported", ErrValidation)
	ErrInvalidCapacity         = fmt.Errorf("%w: invalid participant capacity", ErrValidation)
	ErrInvalidParticipantCount = fmt.Errorf("%w: invalid participant count", ErrValidation)
	ErrInvalidParticipant      = fmt.Errorf("%w: invalid participant id", ErrValidation)
	ErrInvalidConfig           = fmt.Errorf("%w: invalid competition config", ErrValidation)
	ErrFormatMismatch          = fmt.Errorf("%w: requested format or scoring mode differs from the competition", ErrValidation)
	ErrInvalidResult           = fmt.Errorf("%w: invalid result payload", ErrValidation)
	ErrInvalidSkillDelta       = fmt.Errorf("%w: skill delta must not be zero", ErrValidation)
	ErrUnresolvedTies          = fmt.Errorf("%w: rankings contain unresolved ties", ErrValidation)

	ErrInvalidStatusTransition   = fmt.Errorf("%w: invalid lifecycle transition", ErrState)
	ErrSessionsAlreadyGenerated  = fmt.Errorf("%w: sessions already generated", ErrState)
	ErrEnrollmentClosed          = fmt.Errorf("%w: enrollment is closed", ErrState)
	ErrAlreadyEnrolled           = fmt.Errorf("%w: participant is already enrolled", ErrState)
	ErrCompetitionFull           = fmt.Errorf("%w: competition is full", ErrState)
	ErrNotAcceptingResults       = fmt.Errorf("%w: competition is not accepting results", ErrState)
	ErrMatchAlreadyFinalized     = fmt.Errorf("%w: match result already finalized", ErrState)
	ErrMatchNotReady             = fmt.Errorf("%w: match participants are not yet known", ErrState)
	ErrResultsIncomplete         = fmt.Errorf("%w: not all matches are finalized", ErrState)
	ErrRankingsFrozen            = fmt.Errorf("%w: rankings can no longer be recalculated", ErrState)
	ErrRewardsAlreadyDistributed = fmt.Errorf("%w: rewards already distributed", ErrState)
	ErrRewardsNotReady           = fmt.Errorf("%w: rewards can only be distributed for a completed competition", ErrState)

	ErrGenerationInFlight = fmt.Errorf("%w: generation for this competition is already running", ErrConcurrency)

	ErrDuplicateReward = fmt.Errorf("%w: duplicate reward transaction", ErrIntegrity)
)
