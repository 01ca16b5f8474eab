package usecase

import (
	"context"
	"time"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
)

// ContestGateway is the authenticated pick'em app API.
type ContestGateway interface {
	// ContestBoard returns today's board. When no contest is running the
	// gateway fails with ErrNoContest.
	ContestBoard(ctx context.Context) (contest.Board, error)
	PickHistory(ctx context.Context) ([]contest.DayOutcome, error)
	// SubmitPicks locks in exactly three player ids and returns the HTTP
	// status reported by the app.
	SubmitPicks(ctx context.Context, playerIDs []string) (int, error)
}

// NHLTeamRow is one team from the league-wide team listing.
type NHLTeamRow struct {
	ID   int64
	Name string
	Abbr string
}

// NHLRosterRow is one skater on a team roster.
type NHLRosterRow struct {
	PlayerID  int64
	FirstName string
	LastName  string
	Number    int
}

// NHLSeasonRow is a player's current-season line plus the recent-games goal
// sum from the landing payload.
type NHLSeasonRow struct {
	GamesPlayed   int
	Goals         int
	Assists       int
	Points        int
	Shots         int
	ShootingPct   float64
	PlusMinus     int
	AvgTOISeconds int
	RecentGoals   int
}

// NHLStatsSource is the primary statistics feed (official NHL API).
type NHLStatsSource interface {
	TeamList(ctx context.Context) ([]NHLTeamRow, error)
	Roster(ctx context.Context, teamAbbr string) ([]NHLRosterRow, error)
	PlayerLanding(ctx context.Context, playerID int64) (NHLSeasonRow, error)
}

// RecentGoalsSource is the secondary statistics feed: goal counts per player
// name over a recent date window.
type RecentGoalsSource interface {
	RecentGoalScorers(ctx context.Context, from, to time.Time) (map[string]int, error)
}

// InjurySource lists currently injured players by full name. Optional
// enrichment; a failing source degrades to no injury flags.
type InjurySource interface {
	InjuredPlayerNames(ctx context.Context) (map[string]struct{}, error)
}

// TokenProvider mints valid access tokens for the contest gateway.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
	// Invalidate drops the cached token so the next call refreshes. Used when
	// the gateway rejects a token the provider still considered live.
	Invalidate()
}
