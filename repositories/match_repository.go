package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/football-investment/practice-booking-system-sub003/models"
)

// insertChunkSize keeps multi-row inserts well below the 65535 bind parameter limit.
const insertChunkSize = 500

type postgresMatchRepository struct {
	exec SQLExecutor
}

const matchColumns = `
	id, competition_id, stage, group_index, round, order_in_round, bracket_uid,
	participant1_id, participant2_id, source1_uid, source1_outcome, source2_uid, source2_outcome,
	is_bye, result, winner_id, finalized, finalized_at, created_at`

func scanMatch(row rowScanner) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.CompetitionID, &m.Stage, &m.GroupIndex, &m.Round, &m.OrderInRound, &m.BracketUID,
		&m.Participant1ID, &m.Participant2ID, &m.Source1UID, &m.Source1Outcome, &m.Source2UID, &m.Source2Outcome,
		&m.IsBye, &m.Result, &m.WinnerID, &m.Finalized, &m.FinalizedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, matches []*models.Match) error {
	const cols = 16
	for start := 0; start < len(matches); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(matches) {
			end = len(matches)
		}
		chunk := matches[start:end]

		var sb strings.Builder
		sb.WriteString(`INSERT INTO matches (
			competition_id, stage, group_index, round, order_in_round, bracket_uid,
			participant1_id, participant2_id, source1_uid, source1_outcome, source2_uid, source2_outcome,
			is_bye, winner_id, finalized, finalized_at
		) VALUES `)
		args := make([]interface{}, 0, len(chunk)*cols)
		for i, m := range chunk {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(")
			for c := 0; c < cols; c++ {
				if c > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(&sb, "$%d", i*cols+c+1)
			}
			sb.WriteString(")")
			args = append(args,
				m.CompetitionID, m.Stage, m.GroupIndex, m.Round, m.OrderInRound, m.BracketUID,
				m.Participant1ID, m.Participant2ID, m.Source1UID, m.Source1Outcome, m.Source2UID, m.Source2Outcome,
				m.IsBye, m.WinnerID, m.Finalized, m.FinalizedAt,
			)
		}
		sb.WriteString(" RETURNING id, created_at")

		rows, err := r.exec.QueryContext(ctx, sb.String(), args...)
		if err != nil {
			return fmt.Errorf("insert matches: %w", mapPQError(err))
		}
		// Postgres returns RETURNING rows in VALUES order for a single INSERT.
		i := 0
		for rows.Next() {
			if i >= len(chunk) {
				rows.Close()
				return fmt.Errorf("insert matches: more rows returned than inserted")
			}
			if err := rows.Scan(&chunk[i].ID, &chunk[i].CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("scan inserted match: %w", err)
			}
			i++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("insert matches: %w", mapPQError(err))
		}
		rows.Close()
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	return r.getOne(ctx, `SELECT`+matchColumns+` FROM matches WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return r.getOne(ctx, `SELECT`+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) GetByUID(ctx context.Context, competitionID int, uid string) (*models.Match, error) {
	return r.getOne(ctx, `SELECT`+matchColumns+` FROM matches WHERE competition_id = $1 AND bracket_uid = $2`, competitionID, uid)
}

func (r *postgresMatchRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Match, error) {
	m, err := scanMatch(r.exec.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByCompetition(ctx context.Context, competitionID int) ([]*models.Match, error) {
	return r.list(ctx, `SELECT`+matchColumns+`
		FROM matches WHERE competition_id = $1
		ORDER BY round, order_in_round, id`, competitionID)
}

func (r *postgresMatchRepository) ListBySource(ctx context.Context, competitionID int, sourceUID string) ([]*models.Match, error) {
	return r.list(ctx, `SELECT`+matchColumns+`
		FROM matches WHERE competition_id = $1 AND (source1_uid = $2 OR source2_uid = $2)
		ORDER BY id`, competitionID, sourceUID)
}

func (r *postgresMatchRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var out []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *postgresMatchRepository) CountByCompetition(ctx context.Context, competitionID int) (int, error) {
	var n int
	if err := r.exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE competition_id = $1`, competitionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

func (r *postgresMatchRepository) Update(ctx context.Context, m *models.Match) error {
	query := `
		UPDATE matches SET
			participant1_id = $1, participant2_id = $2, result = $3, winner_id = $4,
			finalized = $5, finalized_at = $6
		WHERE id = $7`

	result, err := r.exec.ExecContext(ctx, query,
		m.Participant1ID, m.Participant2ID, m.Result, m.WinnerID, m.Finalized, m.FinalizedAt, m.ID,
	)
	if err != nil {
		return fmt.Errorf("update match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
