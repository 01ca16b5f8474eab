package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/sourcegraph/conc/pool"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/domain/history"
	"github.com/dvrlndr/autopicker/internal/domain/player"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
)

// Run stages, recorded on failed entries so a later look at the history
// shows how far the run got.
const (
	StageFetching   = "fetching"
	StageRanking    = "ranking"
	StageSubmitting = "submitting"
	StageRecording  = "recording"
	StageDryRun     = "dry_run"
)

// StatsCollector is the stats side of a run.
type StatsCollector interface {
	CollectStats(ctx context.Context, board contest.Board) (map[string]player.StatRecord, error)
}

type AutopickerConfig struct {
	Gateway ContestGateway
	Stats   StatsCollector
	Ranker  *Ranker
	History history.Repository
	DryRun  bool
	Logger  *logging.Logger
	Clock   clockwork.Clock
}

// Autopicker drives one contest day end to end: board, history check, stats,
// ranking, submission, record. A date is only ever submitted once; reruns on
// an already-submitted date are a no-op.
type Autopicker struct {
	gateway ContestGateway
	stats   StatsCollector
	ranker  *Ranker
	history history.Repository
	dryRun  bool
	logger  *logging.Logger
	clock   clockwork.Clock
}

func NewAutopicker(cfg AutopickerConfig) *Autopicker {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ranker := cfg.Ranker
	if ranker == nil {
		ranker = NewRanker()
	}
	return &Autopicker{
		gateway: cfg.Gateway,
		stats:   cfg.Stats,
		ranker:  ranker,
		history: cfg.History,
		dryRun:  cfg.DryRun,
		logger:  logger,
		clock:   clock,
	}
}

// Run executes today's contest. The returned result is also what was written
// to history, except when the day was already handled and no write happened.
// A day without a contest returns ErrNoContest with a zero result; callers
// check for it with errors.Is and treat it as a clean exit, not a failure.
func (a *Autopicker) Run(ctx context.Context) (contest.SubmissionResult, error) {
	board, err := a.gateway.ContestBoard(ctx)
	if err != nil {
		if errors.Is(err, ErrNoContest) {
			a.logger.InfoContext(ctx, "no contest today, nothing to do")
			return contest.SubmissionResult{}, err
		}
		return a.recordFailure(ctx, a.clock.Now().Format(contest.DateFormat), StageFetching, err)
	}

	a.logger.InfoContext(ctx, "contest board fetched",
		"date", board.Date, "games", len(board.Games), "lists", len(board.Lists))

	submitted, err := a.history.HasSubmitted(ctx, board.Date)
	if err != nil {
		return a.recordFailure(ctx, board.Date, StageFetching, fmt.Errorf("check history: %w", err))
	}
	if submitted {
		a.logger.InfoContext(ctx, "date already submitted, skipping", "date", board.Date)
		return a.recordedResult(ctx, board.Date)
	}

	if len(board.LockedPicks) > 0 {
		return a.adoptLockedPicks(ctx, board)
	}

	stats, err := a.stats.CollectStats(ctx, board)
	if err != nil {
		return a.recordFailure(ctx, board.Date, StageFetching, err)
	}

	picks, err := a.rankLists(ctx, board, stats)
	if err != nil {
		return a.recordFailure(ctx, board.Date, StageRanking, err)
	}

	if a.dryRun {
		result := contest.SubmissionResult{
			Date:      board.Date,
			Picks:     picks,
			Submitted: false,
			Stage:     StageDryRun,
			CreatedAt: a.clock.Now(),
		}
		a.logger.InfoContext(ctx, "dry run, not submitting", "date", board.Date, "picks", pickIDs(picks))
		if err := a.history.Record(ctx, result); err != nil {
			a.logger.WarnContext(ctx, "record dry run failed", "date", board.Date, "error", err)
		}
		return result, nil
	}

	status, err := a.gateway.SubmitPicks(ctx, pickIDs(picks))
	if err != nil {
		return a.recordFailureWithPicks(ctx, board.Date, StageSubmitting, err, picks, status)
	}

	result := contest.SubmissionResult{
		Date:      board.Date,
		Picks:     picks,
		Submitted: true,
		APIStatus: status,
		CreatedAt: a.clock.Now(),
	}
	a.logger.InfoContext(ctx, "picks submitted",
		"date", board.Date, "status", status, "picks", pickIDs(picks))

	if err := a.history.Record(ctx, result); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			a.logger.WarnContext(ctx, "another run recorded this date first", "date", board.Date)
			return result, nil
		}
		return result, fmt.Errorf("%s: %w", StageRecording, err)
	}

	return result, nil
}

// rankLists ranks every candidate list concurrently and snapshots each
// ranking for later inspection.
func (a *Autopicker) rankLists(ctx context.Context, board contest.Board, stats map[string]player.StatRecord) ([]contest.Pick, error) {
	type listRanking struct {
		index  int
		pick   contest.Pick
		ranked []contest.RankedPlayer
	}

	p := pool.NewWithResults[listRanking]().WithErrors().WithContext(ctx)
	for _, list := range board.Lists {
		p.Go(func(ctx context.Context) (listRanking, error) {
			ranked, err := a.ranker.Rank(list, stats)
			if err != nil {
				return listRanking{}, err
			}
			return listRanking{index: list.Index, pick: a.ranker.PickTop(list.Index, ranked), ranked: ranked}, nil
		})
	}

	rankings, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(rankings, func(i, j int) bool { return rankings[i].index < rankings[j].index })

	picks := make([]contest.Pick, 0, len(rankings))
	for _, r := range rankings {
		picks = append(picks, r.pick)
		if err := a.history.SaveSnapshot(ctx, board.Date, r.index, r.ranked); err != nil {
			a.logger.WarnContext(ctx, "save ranking snapshot failed",
				"date", board.Date, "list", r.index, "error", err)
		}
	}

	return picks, nil
}

// adoptLockedPicks records picks the app already holds for today so the date
// is closed out locally without a second submission.
func (a *Autopicker) adoptLockedPicks(ctx context.Context, board contest.Board) (contest.SubmissionResult, error) {
	a.logger.InfoContext(ctx, "picks already locked upstream, recording them", "date", board.Date)

	result := contest.SubmissionResult{
		Date:      board.Date,
		Picks:     board.LockedPicks,
		Submitted: true,
		CreatedAt: a.clock.Now(),
	}
	if err := a.history.Record(ctx, result); err != nil && !errors.Is(err, ErrDuplicateSubmission) {
		return result, fmt.Errorf("%s: %w", StageRecording, err)
	}
	return result, nil
}

// recordedResult looks up the stored entry for a short-circuited date.
func (a *Autopicker) recordedResult(ctx context.Context, date string) (contest.SubmissionResult, error) {
	entries, err := a.history.Load(ctx)
	if err != nil {
		return contest.SubmissionResult{Date: date, Submitted: true}, nil
	}
	for _, entry := range entries {
		if entry.Date == date {
			return entry, nil
		}
	}
	return contest.SubmissionResult{Date: date, Submitted: true}, nil
}

func (a *Autopicker) recordFailure(ctx context.Context, date, stage string, cause error) (contest.SubmissionResult, error) {
	return a.recordFailureWithPicks(ctx, date, stage, cause, nil, 0)
}

func (a *Autopicker) recordFailureWithPicks(ctx context.Context, date, stage string, cause error, picks []contest.Pick, status int) (contest.SubmissionResult, error) {
	result := contest.SubmissionResult{
		Date:      date,
		Picks:     picks,
		Submitted: false,
		APIStatus: status,
		Stage:     stage,
		Error:     cause.Error(),
		CreatedAt: a.clock.Now(),
	}

	a.logger.ErrorContext(ctx, "run aborted", "date", date, "stage", stage, "error", cause)

	if err := a.history.Record(ctx, result); err != nil {
		a.logger.WarnContext(ctx, "record failed run", "date", date, "error", err)
	}

	return result, fmt.Errorf("%s: %w", stage, cause)
}

func pickIDs(picks []contest.Pick) []string {
	ids := make([]string, 0, len(picks))
	for _, pick := range picks {
		ids = append(ids, pick.PlayerID)
	}
	return ids
}
