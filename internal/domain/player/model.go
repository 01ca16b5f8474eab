package player

import "strings"

// Player is a contest-side candidate as presented by the pick'em app.
// Instances live for a single run only; they are never persisted outside a
// recorded pick.
type Player struct {
	ID        string
	FirstName string
	LastName  string
	Number    int
	TeamID    int64
}

func (p Player) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// StatRecord is the merged per-player statistics view built from the upstream
// feeds. The zero value is the neutral record used for players neither feed
// knows about, so they rank last instead of failing the run.
type StatRecord struct {
	NHLPlayerID   int64
	GamesPlayed   int
	Goals         int
	Assists       int
	Points        int
	Shots         int
	ShootingPct   float64
	RecentGoals   int
	GoalsPerGame  float64
	AvgTOISeconds int
	PlusMinus     int
	Injured       bool
}
