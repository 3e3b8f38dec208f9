package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

type postgresTaskRepository struct {
	exec SQLExecutor
}

const taskColumns = `id, competition_id, status, attempts, session_count, no_op, last_error, created_at, updated_at`

func scanTask(row rowScanner) (*models.GenerationTask, error) {
	t := &models.GenerationTask{}
	if err := row.Scan(&t.ID, &t.CompetitionID, &t.Status, &t.Attempts, &t.SessionCount, &t.NoOp,
		&t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTaskRepository) Create(ctx context.Context, t *models.GenerationTask) error {
	_, err := r.exec.ExecContext(ctx,
		`INSERT INTO generation_tasks (`+taskColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.CompetitionID, t.Status, t.Attempts, t.SessionCount, t.NoOp, t.LastError, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create generation task: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresTaskRepository) GetByID(ctx context.Context, id string) (*models.GenerationTask, error) {
	t, err := scanTask(r.exec.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM generation_tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get generation task: %w", err)
	}
	return t, nil
}

func (r *postgresTaskRepository) GetActive(ctx context.Context, competitionID int) (*models.GenerationTask, error) {
	t, err := scanTask(r.exec.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks
		 WHERE competition_id = $1 AND status IN ($2, $3)
		 ORDER BY created_at DESC LIMIT 1`,
		competitionID, models.TaskPending, models.TaskRunning,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get active generation task: %w", err)
	}
	return t, nil
}

func (r *postgresTaskRepository) GetLatestFinished(ctx context.Context, competitionID int) (*models.GenerationTask, error) {
	t, err := scanTask(r.exec.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks
		 WHERE competition_id = $1 AND status IN ($2, $3)
		 ORDER BY updated_at DESC, created_at DESC LIMIT 1`,
		competitionID, models.TaskSuccess, models.TaskFailed,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get latest finished generation task: %w", err)
	}
	return t, nil
}

func (r *postgresTaskRepository) Update(ctx context.Context, t *models.GenerationTask) error {
	result, err := r.exec.ExecContext(ctx,
		`UPDATE generation_tasks SET status = $1, attempts = $2, session_count = $3, no_op = $4,
			last_error = $5, updated_at = $6
		 WHERE id = $7`,
		t.Status, t.Attempts, t.SessionCount, t.NoOp, t.LastError, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update generation task: %w", err)
	}
	return checkAffectedRows(result, ErrTaskNotFound)
}

func (r *postgresTaskRepository) ListStale(ctx context.Context, updatedBefore time.Time) ([]*models.GenerationTask, error) {
	rows, err := r.exec.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM generation_tasks
		 WHERE status IN ($1, $2) AND updated_at < $3
		 ORDER BY created_at`,
		models.TaskPending, models.TaskRunning, updatedBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale generation tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.GenerationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
