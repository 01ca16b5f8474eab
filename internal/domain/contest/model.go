package contest

import (
	"time"

	"github.com/dvrlndr/autopicker/internal/domain/player"
)

// DateFormat is the canonical contest-date layout used as the history key.
const DateFormat = "2006-01-02"

// CandidateList is one of the three daily player groups. Index is 1-based as
// shown in the app. Source order carries no meaning; ranking is solely by
// computed score.
type CandidateList struct {
	Index   int
	Players []player.Player
}

// Game is a scheduled matchup on the contest board, used to map contest team
// ids onto NHL teams.
type Game struct {
	HomeTeamID   int64
	HomeTeamName string
	AwayTeamID   int64
	AwayTeamName string
	StartAt      time.Time
}

// Board is the daily contest payload: the schedule, the three candidate
// lists, and any picks the account has already locked in upstream.
type Board struct {
	Date        string
	Games       []Game
	Lists       []CandidateList
	LockedPicks []Pick
}

// Pick is the single player selected from a CandidateList. Immutable once
// submitted.
type Pick struct {
	ListIndex    int     `json:"list_index"`
	PlayerID     string  `json:"player_id"`
	PlayerName   string  `json:"player_name"`
	Score        float64 `json:"score"`
	RankPosition int     `json:"rank_position"`
}

// RankedPlayer is one row of a ranked candidate list.
type RankedPlayer struct {
	Player player.Player     `json:"player"`
	Stats  player.StatRecord `json:"stats"`
	Score  float64           `json:"score"`
}

// SubmissionResult is the per-day run outcome. Date is the idempotence key:
// the history store holds at most one entry per date.
type SubmissionResult struct {
	Date      string    `json:"date"`
	Picks     []Pick    `json:"picks"`
	Submitted bool      `json:"submitted"`
	APIStatus int       `json:"api_status"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DayOutcome is one prior day from the app's pick history, with per-pick
// correctness once the contest day has been graded.
type DayOutcome struct {
	Date  string
	Picks []GradedPick
}

// GradedPick is a historical pick with its result flag.
type GradedPick struct {
	ListIndex  int
	PlayerID   string
	PlayerName string
	Graded     bool
	Correct    bool
}
