package usecase

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
)

type historyOnlyGateway struct {
	days []contest.DayOutcome
}

func (g *historyOnlyGateway) ContestBoard(ctx context.Context) (contest.Board, error) {
	return contest.Board{}, nil
}

func (g *historyOnlyGateway) PickHistory(ctx context.Context) ([]contest.DayOutcome, error) {
	return g.days, nil
}

func (g *historyOnlyGateway) SubmitPicks(ctx context.Context, playerIDs []string) (int, error) {
	return 0, nil
}

func gradedHistory() []contest.DayOutcome {
	return []contest.DayOutcome{
		{Date: "2026-01-13", Picks: []contest.GradedPick{
			{ListIndex: 1, PlayerID: "p1", PlayerName: "One", Graded: true, Correct: true},
			{ListIndex: 2, PlayerID: "p2", PlayerName: "Two", Graded: true, Correct: false},
			{ListIndex: 3, PlayerID: "p3", PlayerName: "Three", Graded: true, Correct: true},
		}},
		{Date: "2026-01-14", Picks: []contest.GradedPick{
			{ListIndex: 1, PlayerID: "p4", PlayerName: "Four", Graded: true, Correct: false},
			{ListIndex: 2, PlayerID: "p5", PlayerName: "Five", Graded: false},
		}},
	}
}

func TestReporterSummary(t *testing.T) {
	reporter := NewReporter(&historyOnlyGateway{days: gradedHistory()}, logging.NewNop())

	summary, err := reporter.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}

	if summary.Days != 2 || summary.Graded != 4 || summary.Correct != 2 || summary.Ungraded != 1 {
		t.Fatalf("summary = %+v, want days=2 graded=4 correct=2 ungraded=1", summary)
	}
	if summary.Accuracy() != 0.5 {
		t.Fatalf("accuracy = %v, want 0.5", summary.Accuracy())
	}

	if len(summary.PerList) != 3 {
		t.Fatalf("per-list rows = %d, want 3", len(summary.PerList))
	}
	list1 := summary.PerList[0]
	if list1.ListIndex != 1 || list1.Graded != 2 || list1.Correct != 1 {
		t.Fatalf("list 1 accuracy = %+v, want graded=2 correct=1", list1)
	}
}

func TestReporterSummaryEmptyHistory(t *testing.T) {
	reporter := NewReporter(&historyOnlyGateway{}, logging.NewNop())

	summary, err := reporter.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.Accuracy() != 0 {
		t.Fatalf("accuracy = %v, want 0 on empty history", summary.Accuracy())
	}
}

func TestReporterWriteCSV(t *testing.T) {
	reporter := NewReporter(&historyOnlyGateway{days: gradedHistory()}, logging.NewNop())

	var buf bytes.Buffer
	if err := reporter.WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 6 {
		t.Fatalf("csv has %d lines, want header plus 5 picks", len(lines))
	}
	if lines[0] != "date,list,player_id,player_name,graded,correct" {
		t.Fatalf("csv header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2026-01-13,1,p1,One,true,true") {
		t.Fatalf("first row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[5], "2026-01-14,2,p5,Five,false,false") {
		t.Fatalf("ungraded row = %q", lines[5])
	}
}

func TestLocalSummary(t *testing.T) {
	entries := []contest.SubmissionResult{
		{Date: "2026-01-13", Submitted: true},
		{Date: "2026-01-14", Submitted: false},
		{Date: "2026-01-15", Submitted: true},
	}
	submitted, failed := LocalSummary(entries)
	if submitted != 2 || failed != 1 {
		t.Fatalf("LocalSummary() = %d, %d, want 2, 1", submitted, failed)
	}
}
