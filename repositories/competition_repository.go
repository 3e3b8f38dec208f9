package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

type postgresCompetitionRepository struct {
	exec SQLExecutor
}

const competitionColumns = `
	id, name, format, scoring_mode, min_participants, max_participants, status,
	sessions_generated, sessions_generated_at, rewards_distributed_at, archive_key,
	config, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompetition(row rowScanner) (*models.Competition, error) {
	c := &models.Competition{}
	err := row.Scan(
		&c.ID, &c.Name, &c.Format, &c.ScoringMode, &c.MinParticipants, &c.MaxParticipants, &c.Status,
		&c.SessionsGenerated, &c.SessionsGeneratedAt, &c.RewardsDistributedAt, &c.ArchiveKey,
		&c.Config, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *postgresCompetitionRepository) Create(ctx context.Context, c *models.Competition) error {
	query := `
		INSERT INTO competitions (
			name, format, scoring_mode, min_participants, max_participants, status, config
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.exec.QueryRowContext(ctx, query,
		c.Name, c.Format, c.ScoringMode, c.MinParticipants, c.MaxParticipants, c.Status, c.Config,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create competition: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresCompetitionRepository) GetByID(ctx context.Context, id int) (*models.Competition, error) {
	return r.get(ctx, `SELECT`+competitionColumns+` FROM competitions WHERE id = $1`, id)
}

func (r *postgresCompetitionRepository) GetForUpdate(ctx context.Context, id int) (*models.Competition, error) {
	return r.get(ctx, `SELECT`+competitionColumns+` FROM competitions WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresCompetitionRepository) get(ctx context.Context, query string, id int) (*models.Competition, error) {
	c, err := scanCompetition(r.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompetitionNotFound
		}
		return nil, fmt.Errorf("get competition %d: %w", id, err)
	}
	return c, nil
}

func (r *postgresCompetitionRepository) List(ctx context.Context, filter ListCompetitionsFilter) ([]*models.Competition, error) {
	query := `SELECT` + competitionColumns + ` FROM competitions WHERE 1=1`
	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Format != nil {
		query += fmt.Sprintf(" AND format = $%d", argID)
		args = append(args, *filter.Format)
		argID++
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list competitions: %w", err)
	}
	defer rows.Close()

	var out []*models.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan competition: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresCompetitionRepository) Update(ctx context.Context, c *models.Competition) error {
	query := `
		UPDATE competitions SET
			name = $1, status = $2, sessions_generated = $3, sessions_generated_at = $4,
			rewards_distributed_at = $5, archive_key = $6, config = $7, updated_at = $8
		WHERE id = $9`

	result, err := r.exec.ExecContext(ctx, query,
		c.Name, c.Status, c.SessionsGenerated, c.SessionsGeneratedAt,
		c.RewardsDistributedAt, c.ArchiveKey, c.Config, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update competition %d: %w", c.ID, mapPQError(err))
	}
	return checkAffectedRows(result, ErrCompetitionNotFound)
}
