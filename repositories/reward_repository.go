package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

type postgresRewardRepository struct {
	exec SQLExecutor
}

// CreateTransaction writes to the ledger table of the transaction's category.
func (r *postgresRewardRepository) CreateTransaction(ctx context.Context, t *models.RewardTransaction) error {
	var (
		query string
		args  []interface{}
	)
	switch t.Category {
	case models.RewardCredit:
		query = `INSERT INTO credit_transactions (competition_id, participant_id, amount, rank, idempotency_key)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
		args = []interface{}{t.CompetitionID, t.ParticipantID, t.Amount, t.Rank, t.IdempotencyKey}
	case models.RewardXP:
		query = `INSERT INTO xp_transactions (competition_id, participant_id, amount, rank, idempotency_key)
			VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
		args = []interface{}{t.CompetitionID, t.ParticipantID, t.Amount, t.Rank, t.IdempotencyKey}
	case models.RewardSkill:
		query = `INSERT INTO skill_rewards (competition_id, participant_id, skill_name, amount, rank, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
		args = []interface{}{t.CompetitionID, t.ParticipantID, t.SkillName, t.Amount, t.Rank, t.IdempotencyKey}
	default:
		return fmt.Errorf("unknown reward category %q", t.Category)
	}

	if err := r.exec.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("create %s reward: %w", t.Category, mapPQError(err))
	}
	return nil
}

func (r *postgresRewardRepository) ListTransactions(ctx context.Context, competitionID int) ([]*models.RewardTransaction, error) {
	query := `
		SELECT id, competition_id, participant_id, 'CREDIT', '', amount, rank, idempotency_key, created_at
		FROM credit_transactions WHERE competition_id = $1
		UNION ALL
		SELECT id, competition_id, participant_id, 'XP', '', amount, rank, idempotency_key, created_at
		FROM xp_transactions WHERE competition_id = $1
		UNION ALL
		SELECT id, competition_id, participant_id, 'SKILL', skill_name, amount, rank, idempotency_key, created_at
		FROM skill_rewards WHERE competition_id = $1`

	rows, err := r.exec.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list reward transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.RewardTransaction
	for rows.Next() {
		t := &models.RewardTransaction{}
		if err := rows.Scan(&t.ID, &t.CompetitionID, &t.ParticipantID, &t.Category, &t.SkillName,
			&t.Amount, &t.Rank, &t.IdempotencyKey, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdempotencyKey < out[j].IdempotencyKey })
	return out, nil
}

func (r *postgresRewardRepository) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	err := r.exec.QueryRowContext(ctx,
		`INSERT INTO achievements (competition_id, participant_id, badge) VALUES ($1, $2, $3) RETURNING id, created_at`,
		a.CompetitionID, a.ParticipantID, a.Badge,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("create achievement: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresRewardRepository) ListAchievements(ctx context.Context, competitionID int) ([]*models.Achievement, error) {
	rows, err := r.exec.QueryContext(ctx,
		`SELECT id, competition_id, participant_id, badge, created_at
		 FROM achievements WHERE competition_id = $1 ORDER BY participant_id, badge`,
		competitionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []*models.Achievement
	for rows.Next() {
		a := &models.Achievement{}
		if err := rows.Scan(&a.ID, &a.CompetitionID, &a.ParticipantID, &a.Badge, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
