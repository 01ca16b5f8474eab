package usecase

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/domain/player"
)

func candidate(id string) player.Player {
	return player.Player{ID: id, FirstName: "Test", LastName: id}
}

func TestRanker_EmptyListFails(t *testing.T) {
	ranker := NewRanker()

	_, err := ranker.Rank(contest.CandidateList{Index: 1}, nil)
	if !errors.Is(err, ErrInvalidCandidateList) {
		t.Fatalf("expected ErrInvalidCandidateList, got %v", err)
	}
}

func TestRanker_SinglePlayerPickedUnconditionally(t *testing.T) {
	ranker := NewRanker()
	list := contest.CandidateList{Index: 2, Players: []player.Player{candidate("only-one")}}

	ranked, err := ranker.Rank(list, map[string]player.StatRecord{})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	pick := ranker.PickTop(list.Index, ranked)
	if pick.PlayerID != "only-one" {
		t.Fatalf("unexpected pick: %s", pick.PlayerID)
	}
	if pick.RankPosition != 1 {
		t.Fatalf("unexpected rank position: %d", pick.RankPosition)
	}
	if pick.ListIndex != 2 {
		t.Fatalf("unexpected list index: %d", pick.ListIndex)
	}
}

func TestRanker_TieBreakByLexicographicID(t *testing.T) {
	ranker := NewRanker()
	stats := map[string]player.StatRecord{
		"player-a": {GamesPlayed: 40, Goals: 8, GoalsPerGame: 0.2},
		"player-b": {GamesPlayed: 40, Goals: 19, GoalsPerGame: 0.475},
		"player-c": {GamesPlayed: 40, Goals: 19, GoalsPerGame: 0.475},
	}

	// Every permutation of the source order must yield the same pick.
	permutations := [][]string{
		{"player-a", "player-b", "player-c"},
		{"player-a", "player-c", "player-b"},
		{"player-b", "player-a", "player-c"},
		{"player-b", "player-c", "player-a"},
		{"player-c", "player-a", "player-b"},
		{"player-c", "player-b", "player-a"},
	}
	for _, order := range permutations {
		list := contest.CandidateList{Index: 1}
		for _, id := range order {
			list.Players = append(list.Players, candidate(id))
		}

		ranked, err := ranker.Rank(list, stats)
		if err != nil {
			t.Fatalf("rank order %v: %v", order, err)
		}
		pick := ranker.PickTop(list.Index, ranked)
		if pick.PlayerID != "player-b" {
			t.Fatalf("order %v: expected player-b, got %s", order, pick.PlayerID)
		}
	}
}

func TestRanker_AllZeroStatsStillTotallyOrdered(t *testing.T) {
	ranker := NewRanker()
	list := contest.CandidateList{
		Index:   3,
		Players: []player.Player{candidate("zz"), candidate("aa"), candidate("mm")},
	}

	ranked, err := ranker.Rank(list, map[string]player.StatRecord{})
	if err != nil {
		t.Fatalf("rank: %v", err)
	}

	got := []string{ranked[0].Player.ID, ranked[1].Player.ID, ranked[2].Player.ID}
	want := []string{"aa", "mm", "zz"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestRanker_DeterministicAcrossCalls(t *testing.T) {
	ranker := NewRanker()
	stats := map[string]player.StatRecord{
		"p1": {GamesPlayed: 30, Goals: 10, Shots: 90, ShootingPct: 0.111, RecentGoals: 2, GoalsPerGame: 0.333},
		"p2": {GamesPlayed: 28, Goals: 12, Shots: 70, ShootingPct: 0.171, RecentGoals: 1, GoalsPerGame: 0.428},
		"p3": {GamesPlayed: 35, Goals: 5, Shots: 110, ShootingPct: 0.045, RecentGoals: 4, GoalsPerGame: 0.142},
	}
	list := contest.CandidateList{
		Index:   1,
		Players: []player.Player{candidate("p1"), candidate("p2"), candidate("p3")},
	}

	first, err := ranker.Rank(list, stats)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := ranker.Rank(list, stats)
		if err != nil {
			t.Fatalf("rank repeat %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking not deterministic on repeat %d", i)
		}
	}
}

func TestRanker_InjuredPlayerScoresZero(t *testing.T) {
	ranker := NewRanker()

	healthy := player.StatRecord{GamesPlayed: 40, Goals: 30, Shots: 160, ShootingPct: 0.19, RecentGoals: 5, GoalsPerGame: 0.75}
	injured := healthy
	injured.Injured = true

	if score := ranker.Score(injured); score != 0 {
		t.Fatalf("expected injured score 0, got %f", score)
	}
	if score := ranker.Score(healthy); score <= 0 {
		t.Fatalf("expected positive score for healthy player, got %f", score)
	}
}
