package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/domain/player"
	"github.com/dvrlndr/autopicker/internal/infrastructure/repository/memory"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

type fakeGateway struct {
	board      contest.Board
	boardErr   error
	history    []contest.DayOutcome
	submitIDs  []string
	submitErr  error
	submits    int
	statusCode int
}

func (g *fakeGateway) ContestBoard(ctx context.Context) (contest.Board, error) {
	return g.board, g.boardErr
}

func (g *fakeGateway) PickHistory(ctx context.Context) ([]contest.DayOutcome, error) {
	return g.history, nil
}

func (g *fakeGateway) SubmitPicks(ctx context.Context, playerIDs []string) (int, error) {
	g.submits++
	g.submitIDs = playerIDs
	if g.submitErr != nil {
		return g.statusCode, g.submitErr
	}
	return 200, nil
}

type fakeStats struct {
	records map[string]player.StatRecord
	err     error
	calls   int
}

func (s *fakeStats) CollectStats(ctx context.Context, board contest.Board) (map[string]player.StatRecord, error) {
	s.calls++
	return s.records, s.err
}

func fullBoard() contest.Board {
	return contest.Board{
		Date: "2026-01-15",
		Lists: []contest.CandidateList{
			{Index: 1, Players: []player.Player{
				{ID: "a1", FirstName: "One", LastName: "A"},
				{ID: "a2", FirstName: "Two", LastName: "A"},
			}},
			{Index: 2, Players: []player.Player{
				{ID: "b1", FirstName: "One", LastName: "B"},
				{ID: "b2", FirstName: "Two", LastName: "B"},
			}},
			{Index: 3, Players: []player.Player{
				{ID: "c1", FirstName: "One", LastName: "C"},
				{ID: "c2", FirstName: "Two", LastName: "C"},
			}},
		},
	}
}

func boardStats() map[string]player.StatRecord {
	return map[string]player.StatRecord{
		"a1": {GoalsPerGame: 0.8},
		"a2": {GoalsPerGame: 0.2},
		"b1": {GoalsPerGame: 0.1},
		"b2": {GoalsPerGame: 0.9},
		"c1": {GoalsPerGame: 0.5},
		"c2": {GoalsPerGame: 0.4},
	}
}

func newAutopicker(gateway *fakeGateway, stats *fakeStats, repo *memory.HistoryRepository, dryRun bool) *usecase.Autopicker {
	return usecase.NewAutopicker(usecase.AutopickerConfig{
		Gateway: gateway,
		Stats:   stats,
		History: repo,
		DryRun:  dryRun,
		Logger:  logging.NewNop(),
		Clock:   clockwork.NewFakeClockAt(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)),
	})
}

func TestRunSubmitsTopPickPerList(t *testing.T) {
	gateway := &fakeGateway{board: fullBoard()}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, &fakeStats{records: boardStats()}, repo, false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Submitted || result.APIStatus != 200 {
		t.Fatalf("result = %+v, want submitted with status 200", result)
	}
	want := []string{"a1", "b2", "c1"}
	if len(gateway.submitIDs) != 3 {
		t.Fatalf("submitted %d ids, want 3", len(gateway.submitIDs))
	}
	for i, id := range want {
		if gateway.submitIDs[i] != id {
			t.Fatalf("submitIDs = %v, want %v", gateway.submitIDs, want)
		}
	}

	submitted, err := repo.HasSubmitted(context.Background(), "2026-01-15")
	if err != nil || !submitted {
		t.Fatalf("HasSubmitted() = %t, %v after run", submitted, err)
	}
	for i := 1; i <= 3; i++ {
		if _, ok := repo.Snapshot("2026-01-15", i); !ok {
			t.Fatalf("missing ranking snapshot for list %d", i)
		}
	}
}

func TestRunIdempotentPerDate(t *testing.T) {
	gateway := &fakeGateway{board: fullBoard()}
	stats := &fakeStats{records: boardStats()}
	repo := memory.NewHistoryRepository()
	picker := newAutopicker(gateway, stats, repo, false)

	if _, err := picker.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	result, err := picker.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if gateway.submits != 1 {
		t.Fatalf("gateway submitted %d times, want 1", gateway.submits)
	}
	if stats.calls != 1 {
		t.Fatalf("stats collected %d times, want 1 (short circuit skips fetching)", stats.calls)
	}
	if !result.Submitted || result.Date != "2026-01-15" {
		t.Fatalf("second run result = %+v, want the recorded entry", result)
	}
}

func TestRunNoContest(t *testing.T) {
	gateway := &fakeGateway{boardErr: usecase.ErrNoContest}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, &fakeStats{}, repo, false).Run(context.Background())
	if !errors.Is(err, usecase.ErrNoContest) {
		t.Fatalf("Run() error = %v, want usecase.ErrNoContest", err)
	}
	if result.Date != "" || result.Submitted || result.Stage != "" {
		t.Fatalf("no-contest result = %+v, want zero value", result)
	}

	entries, _ := repo.Load(context.Background())
	if len(entries) != 0 {
		t.Fatalf("history has %d entries after no-contest day, want 0", len(entries))
	}
}

func TestRunAdoptsLockedPicks(t *testing.T) {
	board := fullBoard()
	board.LockedPicks = []contest.Pick{
		{ListIndex: 1, PlayerID: "a2", PlayerName: "Two A", RankPosition: 1},
	}
	gateway := &fakeGateway{board: board}
	stats := &fakeStats{records: boardStats()}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, stats, repo, false).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gateway.submits != 0 {
		t.Fatal("must not submit when picks are already locked upstream")
	}
	if stats.calls != 0 {
		t.Fatal("must not fetch stats when picks are already locked upstream")
	}
	if !result.Submitted || result.Picks[0].PlayerID != "a2" {
		t.Fatalf("result = %+v, want locked pick adopted as submitted", result)
	}

	submitted, _ := repo.HasSubmitted(context.Background(), "2026-01-15")
	if !submitted {
		t.Fatal("locked picks should close out the date in history")
	}
}

func TestRunStatsFailureRecordedWithStage(t *testing.T) {
	gateway := &fakeGateway{board: fullBoard()}
	stats := &fakeStats{err: usecase.ErrUpstreamUnavailable}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, stats, repo, false).Run(context.Background())
	if !errors.Is(err, usecase.ErrUpstreamUnavailable) {
		t.Fatalf("Run() error = %v, want usecase.ErrUpstreamUnavailable", err)
	}
	if result.Submitted || result.Stage != usecase.StageFetching {
		t.Fatalf("result = %+v, want unsubmitted with stage %q", result, usecase.StageFetching)
	}

	entries, _ := repo.Load(context.Background())
	if len(entries) != 1 || entries[0].Submitted || entries[0].Stage != usecase.StageFetching {
		t.Fatalf("history entries = %+v, want one failed entry at stage %q", entries, usecase.StageFetching)
	}
}

func TestRunFailedDateCanBeRetried(t *testing.T) {
	gateway := &fakeGateway{board: fullBoard()}
	stats := &fakeStats{err: usecase.ErrUpstreamUnavailable}
	repo := memory.NewHistoryRepository()
	picker := newAutopicker(gateway, stats, repo, false)

	if _, err := picker.Run(context.Background()); err == nil {
		t.Fatal("first run should fail")
	}

	stats.err = nil
	stats.records = boardStats()
	result, err := picker.Run(context.Background())
	if err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if !result.Submitted {
		t.Fatalf("retry result = %+v, want submitted", result)
	}

	entries, _ := repo.Load(context.Background())
	if len(entries) != 1 || !entries[0].Submitted {
		t.Fatalf("history entries = %+v, want the failure overwritten", entries)
	}
}

func TestRunEmptyListAbortsBeforeSubmit(t *testing.T) {
	board := fullBoard()
	board.Lists[1].Players = nil
	gateway := &fakeGateway{board: board}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, &fakeStats{records: boardStats()}, repo, false).Run(context.Background())
	if !errors.Is(err, usecase.ErrInvalidCandidateList) {
		t.Fatalf("Run() error = %v, want usecase.ErrInvalidCandidateList", err)
	}
	if gateway.submits != 0 {
		t.Fatal("must not submit when a list cannot be ranked")
	}
	if result.Stage != usecase.StageRanking {
		t.Fatalf("result stage = %q, want %q", result.Stage, usecase.StageRanking)
	}
}

func TestRunSubmitRejectionRecorded(t *testing.T) {
	gateway := &fakeGateway{board: fullBoard(), submitErr: usecase.ErrSubmissionRejected, statusCode: 422}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, &fakeStats{records: boardStats()}, repo, false).Run(context.Background())
	if !errors.Is(err, usecase.ErrSubmissionRejected) {
		t.Fatalf("Run() error = %v, want usecase.ErrSubmissionRejected", err)
	}
	if result.Submitted || result.Stage != usecase.StageSubmitting || result.APIStatus != 422 {
		t.Fatalf("result = %+v, want failed submitting entry with status 422", result)
	}
	if len(result.Picks) != 3 {
		t.Fatalf("failed entry has %d picks, want the computed 3 kept", len(result.Picks))
	}
}

func TestRunDryRunComputesButDoesNotSubmit(t *testing.T) {
	gateway := &fakeGateway{board: fullBoard()}
	repo := memory.NewHistoryRepository()

	result, err := newAutopicker(gateway, &fakeStats{records: boardStats()}, repo, true).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if gateway.submits != 0 {
		t.Fatal("dry run must not submit")
	}
	if result.Submitted || result.Stage != usecase.StageDryRun {
		t.Fatalf("result = %+v, want unsubmitted dry run entry", result)
	}
	if len(result.Picks) != 3 || result.Picks[0].PlayerID != "a1" {
		t.Fatalf("dry run picks = %+v, want computed picks", result.Picks)
	}

	submitted, _ := repo.HasSubmitted(context.Background(), "2026-01-15")
	if submitted {
		t.Fatal("dry run entry must not block a later real run")
	}
}
