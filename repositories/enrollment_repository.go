package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

type postgresEnrollmentRepository struct {
	exec SQLExecutor
}

func (r *postgresEnrollmentRepository) Create(ctx context.Context, e *models.Enrollment) error {
	query := `
		INSERT INTO enrollments (competition_id, participant_id, status, seed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.exec.QueryRowContext(ctx, query, e.CompetitionID, e.ParticipantID, e.Status, e.Seed).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create enrollment: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresEnrollmentRepository) Get(ctx context.Context, competitionID, participantID int) (*models.Enrollment, error) {
	query := `
		SELECT id, competition_id, participant_id, status, seed, created_at, updated_at
		FROM enrollments WHERE competition_id = $1 AND participant_id = $2`

	e := &models.Enrollment{}
	err := r.exec.QueryRowContext(ctx, query, competitionID, participantID).Scan(
		&e.ID, &e.CompetitionID, &e.ParticipantID, &e.Status, &e.Seed, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return e, nil
}

func (r *postgresEnrollmentRepository) Update(ctx context.Context, e *models.Enrollment) error {
	result, err := r.exec.ExecContext(ctx,
		`UPDATE enrollments SET status = $1, seed = $2, updated_at = $3 WHERE id = $4`,
		e.Status, e.Seed, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("update enrollment %d: %w", e.ID, err)
	}
	return checkAffectedRows(result, ErrEnrollmentNotFound)
}

// ListActive orders by explicit seed first, then by enrollment order.
func (r *postgresEnrollmentRepository) ListActive(ctx context.Context, competitionID int) ([]*models.Enrollment, error) {
	query := `
		SELECT id, competition_id, participant_id, status, seed, created_at, updated_at
		FROM enrollments
		WHERE competition_id = $1 AND status = $2
		ORDER BY seed ASC NULLS LAST, id ASC`

	rows, err := r.exec.QueryContext(ctx, query, competitionID, models.EnrollmentActive)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	var out []*models.Enrollment
	for rows.Next() {
		e := &models.Enrollment{}
		if err := rows.Scan(&e.ID, &e.CompetitionID, &e.ParticipantID, &e.Status, &e.Seed, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *postgresEnrollmentRepository) CountActive(ctx context.Context, competitionID int) (int, error) {
	var n int
	err := r.exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments WHERE competition_id = $1 AND status = $2`,
		competitionID, models.EnrollmentActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return n, nil
}
