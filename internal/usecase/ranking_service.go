package usecase

import (
	"fmt"
	"sort"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/domain/player"
)

// Scoring weights. The blend mirrors the sort priority the picker has always
// used: season goal rate dominates, recent form second, shot volume and
// conversion as separators. Values are a tuning choice, not a fitted model.
const (
	weightSeasonGoalsPerGame = 0.50
	weightRecentGoals        = 0.30
	weightShotsPerGame       = 0.15
	weightShootingPct        = 0.05

	// recentWindowGames matches the last-N-games window the feeds report.
	recentWindowGames = 5.0
	// shotsPerGameScale brings shots/game (roughly 0..5 for skaters) onto the
	// same 0..1 scale as the other terms.
	shotsPerGameScale = 5.0
)

// Ranker orders candidate lists by predicted scoring likelihood.
type Ranker struct{}

func NewRanker() *Ranker {
	return &Ranker{}
}

// Score is a pure function of a StatRecord. Injured players score zero so
// they fall behind every healthy candidate; ties are still totally ordered
// by the rank tie-break.
func (r *Ranker) Score(rec player.StatRecord) float64 {
	if rec.Injured {
		return 0
	}

	shotsPerGame := 0.0
	if rec.GamesPlayed > 0 {
		shotsPerGame = float64(rec.Shots) / float64(rec.GamesPlayed)
	}

	return weightSeasonGoalsPerGame*rec.GoalsPerGame +
		weightRecentGoals*(float64(rec.RecentGoals)/recentWindowGames) +
		weightShotsPerGame*(shotsPerGame/shotsPerGameScale) +
		weightShootingPct*rec.ShootingPct
}

// Rank returns the list ordered by descending score. The order is total:
// equal scores fall back to the lexicographically smaller player id, so
// repeated runs on identical input are bit-identical regardless of the
// source order of the list.
func (r *Ranker) Rank(list contest.CandidateList, stats map[string]player.StatRecord) ([]contest.RankedPlayer, error) {
	if len(list.Players) == 0 {
		return nil, fmt.Errorf("%w: list %d has no players", ErrInvalidCandidateList, list.Index)
	}

	ranked := make([]contest.RankedPlayer, 0, len(list.Players))
	for _, p := range list.Players {
		rec := stats[p.ID]
		ranked = append(ranked, contest.RankedPlayer{
			Player: p,
			Stats:  rec,
			Score:  r.Score(rec),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Player.ID < ranked[j].Player.ID
	})

	return ranked, nil
}

// PickTop selects the head of a ranked list as the day's pick for it.
func (r *Ranker) PickTop(listIndex int, ranked []contest.RankedPlayer) contest.Pick {
	top := ranked[0]
	return contest.Pick{
		ListIndex:    listIndex,
		PlayerID:     top.Player.ID,
		PlayerName:   top.Player.FullName(),
		Score:        top.Score,
		RankPosition: 1,
	}
}
