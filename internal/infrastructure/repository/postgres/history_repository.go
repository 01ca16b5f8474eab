package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

type HistoryRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) HasSubmitted(ctx context.Context, date string) (bool, error) {
	var submitted bool
	err := r.db.GetContext(ctx, &submitted,
		`SELECT submitted FROM run_history WHERE contest_date = $1`, date)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check submitted for %s: %w", date, err)
	}
	return submitted, nil
}

// Record inserts or replaces the day's entry inside one transaction. The
// select takes a row lock so two concurrent runs for the same date cannot
// both pass the duplicate check.
func (r *HistoryRepository) Record(ctx context.Context, result contest.SubmissionResult) error {
	if result.Date == "" {
		return fmt.Errorf("%w: result date is empty", usecase.ErrInvalidInput)
	}

	picks, err := encodePicks(result.Picks)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer tx.Rollback()

	var submitted bool
	err = tx.GetContext(ctx, &submitted,
		`SELECT submitted FROM run_history WHERE contest_date = $1 FOR UPDATE`, result.Date)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("lock history row for %s: %w", result.Date, err)
	}
	if err == nil && submitted {
		return fmt.Errorf("%w: %s", usecase.ErrDuplicateSubmission, result.Date)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO run_history
    (contest_date, picks, submitted, api_status, stage, error_text, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (contest_date)
DO UPDATE SET
    picks = EXCLUDED.picks,
    submitted = EXCLUDED.submitted,
    api_status = EXCLUDED.api_status,
    stage = EXCLUDED.stage,
    error_text = EXCLUDED.error_text,
    updated_at = NOW()`,
		result.Date, picks, result.Submitted, result.APIStatus, result.Stage, result.Error, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert history for %s: %w", result.Date, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Load(ctx context.Context) ([]contest.SubmissionResult, error) {
	var rows []runHistoryTableModel
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, contest_date, picks, submitted, api_status, stage, error_text, created_at, updated_at
FROM run_history
ORDER BY contest_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}

	out := make([]contest.SubmissionResult, 0, len(rows))
	for _, row := range rows {
		result, err := runHistoryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

func (r *HistoryRepository) SaveSnapshot(ctx context.Context, date string, listIndex int, ranked []contest.RankedPlayer) error {
	encoded, err := sonic.Marshal(ranked)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO ranking_snapshots
    (contest_date, list_index, ranked, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (contest_date, list_index)
DO UPDATE SET ranked = EXCLUDED.ranked, created_at = NOW()`,
		date, listIndex, encoded)
	if err != nil {
		return fmt.Errorf("save snapshot for %s list %d: %w", date, listIndex, err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
