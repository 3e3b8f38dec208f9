package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/football-investment/practice-booking-system-sub003/models"
	"github.com/lib/pq"
)

type postgresRankingRepository struct {
	exec SQLExecutor
}

// ReplaceAll streams the new set with COPY when running inside a transaction and
// falls back to row inserts otherwise.
func (r *postgresRankingRepository) ReplaceAll(ctx context.Context, competitionID int, rankings []*models.Ranking) error {
	if _, err := r.exec.ExecContext(ctx, `DELETE FROM rankings WHERE competition_id = $1`, competitionID); err != nil {
		return fmt.Errorf("delete rankings: %w", err)
	}
	if len(rankings) == 0 {
		return nil
	}

	if tx, ok := r.exec.(*sql.Tx); ok {
		return copyRankings(ctx, tx, rankings)
	}

	query := `
		INSERT INTO rankings (
			competition_id, participant_id, rank, points, wins, draws, losses,
			score_for, score_against, score_difference, buchholz, tied, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	for _, rk := range rankings {
		if _, err := r.exec.ExecContext(ctx, query,
			rk.CompetitionID, rk.ParticipantID, rk.Rank, rk.Points, rk.Wins, rk.Draws, rk.Losses,
			rk.ScoreFor, rk.ScoreAgainst, rk.ScoreDifference, rk.Buchholz, rk.Tied, rk.ComputedAt,
		); err != nil {
			return fmt.Errorf("insert ranking: %w", mapPQError(err))
		}
	}
	return nil
}

func copyRankings(ctx context.Context, tx *sql.Tx, rankings []*models.Ranking) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("rankings",
		"competition_id", "participant_id", "rank", "points", "wins", "draws", "losses",
		"score_for", "score_against", "score_difference", "buchholz", "tied", "computed_at",
	))
	if err != nil {
		return fmt.Errorf("prepare rankings copy: %w", err)
	}
	defer stmt.Close()

	for _, rk := range rankings {
		if _, err := stmt.ExecContext(ctx,
			rk.CompetitionID, rk.ParticipantID, rk.Rank, rk.Points, rk.Wins, rk.Draws, rk.Losses,
			rk.ScoreFor, rk.ScoreAgainst, rk.ScoreDifference, rk.Buchholz, rk.Tied, rk.ComputedAt,
		); err != nil {
			return fmt.Errorf("copy ranking: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flush rankings copy: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresRankingRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Ranking, error) {
	query := `
		SELECT id, competition_id, participant_id, rank, points, wins, draws, losses,
			score_for, score_against, score_difference, buchholz, tied, computed_at
		FROM rankings WHERE competition_id = $1 ORDER BY rank`

	rows, err := r.exec.QueryContext(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("list rankings: %w", err)
	}
	defer rows.Close()

	var out []*models.Ranking
	for rows.Next() {
		rk := &models.Ranking{}
		if err := rows.Scan(
			&rk.ID, &rk.CompetitionID, &rk.ParticipantID, &rk.Rank, &rk.Points, &rk.Wins, &rk.Draws, &rk.Losses,
			&rk.ScoreFor, &rk.ScoreAgainst, &rk.ScoreDifference, &rk.Buchholz, &rk.Tied, &rk.ComputedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		out = append(out, rk)
	}
	return out, rows.Err()
}
