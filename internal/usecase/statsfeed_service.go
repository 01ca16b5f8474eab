package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/jonboulle/clockwork"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/domain/player"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
)

type StatsFeedConfig struct {
	NHL        NHLStatsSource
	Scores     RecentGoalsSource
	Injuries   InjurySource
	Workers    int
	RecentDays int
	Logger     *logging.Logger
	Clock      clockwork.Clock
}

// StatsFeed resolves a stat record for every candidate on the board. The
// official NHL API is the primary source; the live scores feed fills in
// recent goals and keeps the run alive when the primary is down. Candidates
// neither source knows stay at the neutral zero record.
type StatsFeed struct {
	nhl        NHLStatsSource
	scores     RecentGoalsSource
	injuries   InjurySource
	workers    int
	recentDays int
	logger     *logging.Logger
	clock      clockwork.Clock
}

func NewStatsFeed(cfg StatsFeedConfig) *StatsFeed {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 8
	}
	recentDays := cfg.RecentDays
	if recentDays < 1 {
		recentDays = 5
	}
	return &StatsFeed{
		nhl:        cfg.NHL,
		scores:     cfg.Scores,
		injuries:   cfg.Injuries,
		workers:    workers,
		recentDays: recentDays,
		logger:     logger,
		clock:      clock,
	}
}

// CollectStats returns one StatRecord per candidate, keyed by contest player
// id. It fails with ErrUpstreamUnavailable only when neither stats source
// produced anything.
func (f *StatsFeed) CollectStats(ctx context.Context, board contest.Board) (map[string]player.StatRecord, error) {
	candidates := boardCandidates(board)
	records := make(map[string]player.StatRecord, len(candidates))
	for _, c := range candidates {
		records[c.ID] = player.StatRecord{}
	}

	primaryErr := f.collectPrimary(ctx, board, candidates, records)
	if primaryErr != nil {
		f.logger.WarnContext(ctx, "primary stats source failed, relying on recent scorers", "error", primaryErr)
	}

	recentErr := f.mergeRecentGoals(ctx, candidates, records)
	if recentErr != nil {
		f.logger.WarnContext(ctx, "recent scorers source failed", "error", recentErr)
	}

	if primaryErr != nil && recentErr != nil {
		return nil, fmt.Errorf("%w: primary: %v; recent scorers: %v", ErrUpstreamUnavailable, primaryErr, recentErr)
	}

	f.applyInjuries(ctx, candidates, records)

	return records, nil
}

// collectPrimary maps candidates onto NHL player ids via team rosters, then
// pulls each landing page on the worker pool.
func (f *StatsFeed) collectPrimary(ctx context.Context, board contest.Board, candidates []player.Player, records map[string]player.StatRecord) error {
	teams, err := f.nhl.TeamList(ctx)
	if err != nil {
		return fmt.Errorf("team list: %w", err)
	}

	abbrByName := make(map[string]string, len(teams))
	abbrByID := make(map[int64]string, len(teams))
	for _, team := range teams {
		abbrByName[normalizeName(team.Name)] = team.Abbr
		abbrByID[team.ID] = team.Abbr
	}

	rosterIndex, err := f.loadRosters(ctx, board, abbrByName, abbrByID)
	if err != nil {
		return err
	}

	type landingJob struct {
		contestID   string
		nhlPlayerID int64
	}
	jobs := make([]landingJob, 0, len(candidates))
	for _, c := range candidates {
		nhlID, ok := rosterIndex.resolve(c)
		if !ok {
			f.logger.DebugContext(ctx, "candidate not found on any roster", "player", c.FullName(), "team_id", c.TeamID)
			continue
		}
		jobs = append(jobs, landingJob{contestID: c.ID, nhlPlayerID: nhlID})
	}

	pool, err := ants.NewPool(f.workers)
	if err != nil {
		return fmt.Errorf("create stats worker pool: %w", err)
	}
	defer pool.Release()

	type landingResult struct {
		contestID   string
		nhlPlayerID int64
		row         NHLSeasonRow
		err         error
	}
	results := make(chan landingResult, len(jobs))

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			row, err := f.nhl.PlayerLanding(ctx, job.nhlPlayerID)
			results <- landingResult{contestID: job.contestID, nhlPlayerID: job.nhlPlayerID, row: row, err: err}
		})
		if submitErr != nil {
			wg.Done()
			results <- landingResult{contestID: job.contestID, err: submitErr}
		}
	}
	wg.Wait()
	close(results)

	fetched := 0
	for res := range results {
		if res.err != nil {
			f.logger.WarnContext(ctx, "player landing fetch failed", "player_id", res.contestID, "error", res.err)
			continue
		}
		record := records[res.contestID]
		record.NHLPlayerID = res.nhlPlayerID
		record.GamesPlayed = res.row.GamesPlayed
		record.Goals = res.row.Goals
		record.Assists = res.row.Assists
		record.Points = res.row.Points
		record.Shots = res.row.Shots
		record.ShootingPct = res.row.ShootingPct
		record.PlusMinus = res.row.PlusMinus
		record.AvgTOISeconds = res.row.AvgTOISeconds
		record.RecentGoals = res.row.RecentGoals
		if record.GamesPlayed > 0 {
			record.GoalsPerGame = float64(record.Goals) / float64(record.GamesPlayed)
		}
		records[res.contestID] = record
		fetched++
	}

	if fetched == 0 && len(jobs) > 0 {
		return fmt.Errorf("all %d player landing fetches failed", len(jobs))
	}

	return nil
}

type rosterIndex struct {
	byTeamAndName   map[string]int64
	byTeamAndNumber map[string]int64
	byName          map[string]int64
	abbrByTeamID    map[int64]string
}

func (idx rosterIndex) resolve(c player.Player) (int64, bool) {
	abbr := idx.abbrByTeamID[c.TeamID]
	name := normalizeName(c.FullName())

	if abbr != "" {
		if id, ok := idx.byTeamAndName[abbr+"/"+name]; ok {
			return id, true
		}
		if c.Number > 0 {
			if id, ok := idx.byTeamAndNumber[fmt.Sprintf("%s/%d", abbr, c.Number)]; ok {
				return id, true
			}
		}
	}

	id, ok := idx.byName[name]
	return id, ok
}

// loadRosters fetches the roster of every team on the board's schedule and
// indexes skaters by name and by jersey number.
func (f *StatsFeed) loadRosters(ctx context.Context, board contest.Board, abbrByName map[string]string, abbrByID map[int64]string) (rosterIndex, error) {
	idx := rosterIndex{
		byTeamAndName:   make(map[string]int64),
		byTeamAndNumber: make(map[string]int64),
		byName:          make(map[string]int64),
		abbrByTeamID:    make(map[int64]string),
	}

	abbrs := make([]string, 0, len(board.Games)*2)
	seen := make(map[string]struct{})
	addTeam := func(teamID int64, teamName string) {
		abbr, ok := abbrByID[teamID]
		if !ok {
			abbr, ok = abbrByName[normalizeName(teamName)]
		}
		if !ok {
			f.logger.WarnContext(ctx, "contest team not found in nhl team list", "team_id", teamID, "team_name", teamName)
			return
		}
		idx.abbrByTeamID[teamID] = abbr
		if _, dup := seen[abbr]; !dup {
			seen[abbr] = struct{}{}
			abbrs = append(abbrs, abbr)
		}
	}
	for _, game := range board.Games {
		addTeam(game.HomeTeamID, game.HomeTeamName)
		addTeam(game.AwayTeamID, game.AwayTeamName)
	}

	loaded := 0
	for _, abbr := range abbrs {
		rows, err := f.nhl.Roster(ctx, abbr)
		if err != nil {
			f.logger.WarnContext(ctx, "roster fetch failed", "team", abbr, "error", err)
			continue
		}
		loaded++
		for _, row := range rows {
			name := normalizeName(row.FirstName + " " + row.LastName)
			idx.byTeamAndName[abbr+"/"+name] = row.PlayerID
			if row.Number > 0 {
				idx.byTeamAndNumber[fmt.Sprintf("%s/%d", abbr, row.Number)] = row.PlayerID
			}
			idx.byName[name] = row.PlayerID
		}
	}

	if loaded == 0 && len(abbrs) > 0 {
		return rosterIndex{}, fmt.Errorf("all %d roster fetches failed", len(abbrs))
	}

	return idx, nil
}

// mergeRecentGoals overlays the live scores feed. It only ever raises the
// recent-goal count; the landing page's last-5 sum wins when larger.
func (f *StatsFeed) mergeRecentGoals(ctx context.Context, candidates []player.Player, records map[string]player.StatRecord) error {
	if f.scores == nil {
		return nil
	}

	to := f.clock.Now()
	from := to.AddDate(0, 0, -f.recentDays)
	scorers, err := f.scores.RecentGoalScorers(ctx, from, to)
	if err != nil {
		return err
	}

	byName := make(map[string]int, len(scorers))
	for name, goals := range scorers {
		byName[normalizeName(name)] = goals
	}

	for _, c := range candidates {
		goals, ok := byName[normalizeName(c.FullName())]
		if !ok {
			continue
		}
		record := records[c.ID]
		if goals > record.RecentGoals {
			record.RecentGoals = goals
			records[c.ID] = record
		}
	}

	return nil
}

// applyInjuries is best effort: a failing injury source leaves every flag
// unset.
func (f *StatsFeed) applyInjuries(ctx context.Context, candidates []player.Player, records map[string]player.StatRecord) {
	if f.injuries == nil {
		return
	}

	injured, err := f.injuries.InjuredPlayerNames(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "injury source failed, skipping injury flags", "error", err)
		return
	}

	normalized := make(map[string]struct{}, len(injured))
	for name := range injured {
		normalized[normalizeName(name)] = struct{}{}
	}

	for _, c := range candidates {
		if _, ok := normalized[normalizeName(c.FullName())]; ok {
			record := records[c.ID]
			record.Injured = true
			records[c.ID] = record
		}
	}
}

func boardCandidates(board contest.Board) []player.Player {
	var out []player.Player
	seen := make(map[string]struct{})
	for _, list := range board.Lists {
		for _, c := range list.Players {
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

var nameNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeName folds a player or team name into a comparison key: lowercase,
// diacritics stripped, punctuation dropped, whitespace collapsed.
func normalizeName(raw string) string {
	folded, _, err := transform.String(nameNormalizer, strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(raw))
	}

	var b strings.Builder
	lastSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || r == '-':
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}
