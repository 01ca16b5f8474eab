package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
)

// ListAccuracy is the hit rate of one candidate list position.
type ListAccuracy struct {
	ListIndex int
	Graded    int
	Correct   int
}

// ReportSummary aggregates the app's graded pick history.
type ReportSummary struct {
	Days     int
	Graded   int
	Correct  int
	PerList  []ListAccuracy
	Ungraded int
}

// Accuracy is the overall hit rate over graded picks, 0 when nothing has
// been graded yet.
func (s ReportSummary) Accuracy() float64 {
	if s.Graded == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Graded)
}

// Reporter summarizes how past picks actually scored, straight from the
// app's own graded history.
type Reporter struct {
	gateway ContestGateway
	logger  *logging.Logger
}

func NewReporter(gateway ContestGateway, logger *logging.Logger) *Reporter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Reporter{gateway: gateway, logger: logger}
}

func (r *Reporter) Summary(ctx context.Context) (ReportSummary, error) {
	days, err := r.gateway.PickHistory(ctx)
	if err != nil {
		return ReportSummary{}, fmt.Errorf("load pick history: %w", err)
	}

	summary := ReportSummary{Days: len(days)}
	perList := make(map[int]*ListAccuracy)
	for _, day := range days {
		for _, pick := range day.Picks {
			if !pick.Graded {
				summary.Ungraded++
				continue
			}
			summary.Graded++
			acc, ok := perList[pick.ListIndex]
			if !ok {
				acc = &ListAccuracy{ListIndex: pick.ListIndex}
				perList[pick.ListIndex] = acc
			}
			acc.Graded++
			if pick.Correct {
				summary.Correct++
				acc.Correct++
			}
		}
	}

	for i := 1; i <= 3; i++ {
		if acc, ok := perList[i]; ok {
			summary.PerList = append(summary.PerList, *acc)
		}
	}

	return summary, nil
}

// WriteCSV streams the per-pick detail rows, one row per historical pick.
func (r *Reporter) WriteCSV(ctx context.Context, w io.Writer) error {
	days, err := r.gateway.PickHistory(ctx)
	if err != nil {
		return fmt.Errorf("load pick history: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "list", "player_id", "player_name", "graded", "correct"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, day := range days {
		for _, pick := range day.Picks {
			row := []string{
				day.Date,
				strconv.Itoa(pick.ListIndex),
				pick.PlayerID,
				pick.PlayerName,
				strconv.FormatBool(pick.Graded),
				strconv.FormatBool(pick.Graded && pick.Correct),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row for %s: %w", day.Date, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// LocalSummary folds the locally recorded runs into counts of submitted and
// failed days, for operators without gateway access.
func LocalSummary(entries []contest.SubmissionResult) (submitted, failed int) {
	for _, entry := range entries {
		if entry.Submitted {
			submitted++
		} else {
			failed++
		}
	}
	return submitted, failed
}
