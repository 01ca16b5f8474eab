package postgres

import (
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
)

type runHistoryTableModel struct {
	ID          int64     `db:"id"`
	ContestDate string    `db:"contest_date"`
	Picks       []byte    `db:"picks"`
	Submitted   bool      `db:"submitted"`
	APIStatus   int       `db:"api_status"`
	Stage       string    `db:"stage"`
	ErrorText   string    `db:"error_text"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func runHistoryFromRow(row runHistoryTableModel) (contest.SubmissionResult, error) {
	result := contest.SubmissionResult{
		Date:      row.ContestDate,
		Submitted: row.Submitted,
		APIStatus: row.APIStatus,
		Stage:     row.Stage,
		Error:     row.ErrorText,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Picks) > 0 {
		if err := sonic.Unmarshal(row.Picks, &result.Picks); err != nil {
			return contest.SubmissionResult{}, fmt.Errorf("decode picks for %s: %w", row.ContestDate, err)
		}
	}
	return result, nil
}

func encodePicks(picks []contest.Pick) ([]byte, error) {
	if len(picks) == 0 {
		return []byte("[]"), nil
	}
	encoded, err := sonic.Marshal(picks)
	if err != nil {
		return nil, fmt.Errorf("encode picks: %w", err)
	}
	return encoded, nil
}
