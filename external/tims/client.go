package tims

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/dvrlndr/autopicker/internal/domain/contest"
	"github.com/dvrlndr/autopicker/internal/domain/player"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/platform/resilience"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

const (
	defaultGraphQLURL = "https://use1-prod-th-gateway.rbictg.com/graphql"
	maxResponseBytes  = 4 << 20
	codeNoContest     = "noContest"
)

var errTimsTransient = crerr.New("contest gateway transient failure")

type ClientConfig struct {
	HTTPClient *http.Client
	GraphQLURL string
	UserAgent  string
	UserID     string
	Tokens     usecase.TokenProvider
	Timeout    time.Duration
	Retry      resilience.RetryPolicy
	Logger     *logging.Logger
}

// Client is the authenticated contest gateway. Every call obtains a valid
// access token first; an unauthorized response is routed once through the
// token provider's refresh path before giving up.
type Client struct {
	httpClient *http.Client
	graphqlURL string
	userAgent  string
	userID     string
	tokens     usecase.TokenProvider
	retry      resilience.RetryPolicy
	logger     *logging.Logger
	validate   *validator.Validate
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 15 * time.Second
	}

	graphqlURL := strings.TrimSpace(cfg.GraphQLURL)
	if graphqlURL == "" {
		graphqlURL = defaultGraphQLURL
	}

	return &Client{
		httpClient: httpClient,
		graphqlURL: graphqlURL,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		userID:     strings.TrimSpace(cfg.UserID),
		tokens:     cfg.Tokens,
		retry:      resilience.NormalizeRetryPolicy(cfg.Retry),
		logger:     logger,
		validate:   validator.New(),
	}
}

const contestBoardQuery = `query hockeyContest($userId: String!) {
  hockeyContest(userId: $userId) {
    code
    contestDate
    games {
      startTime
      homeTeam { id name }
      awayTeam { id name }
    }
    sets {
      setId
      players { id firstName lastName number teamId }
    }
    picks {
      setId
      player { id firstName lastName }
    }
  }
}`

func (c *Client) ContestBoard(ctx context.Context) (contest.Board, error) {
	var decoded struct {
		HockeyContest boardPayload `json:"hockeyContest"`
	}
	status, err := c.doOperation(ctx, "hockeyContest", contestBoardQuery, map[string]any{"userId": c.userID}, &decoded)
	if err != nil {
		return contest.Board{}, fmt.Errorf("fetch contest board: %w", err)
	}
	if status != http.StatusOK {
		return contest.Board{}, fmt.Errorf("contest board status=%d", status)
	}

	payload := decoded.HockeyContest
	if payload.Code == codeNoContest {
		return contest.Board{}, usecase.ErrNoContest
	}

	if err := c.validate.Struct(payload); err != nil {
		return contest.Board{}, fmt.Errorf("%w: contest board payload: %v", usecase.ErrInvalidInput, err)
	}
	if len(payload.Picks) == 0 && len(payload.Sets) != 3 {
		return contest.Board{}, fmt.Errorf("%w: expected 3 candidate sets, got %d", usecase.ErrInvalidInput, len(payload.Sets))
	}

	return payload.toBoard(), nil
}

const pickHistoryQuery = `query hockeyContestHistory($userId: String!) {
  hockeyContestHistory(userId: $userId) {
    history {
      contestDate
      picks {
        setId
        correct
        player { id firstName lastName }
      }
    }
  }
}`

func (c *Client) PickHistory(ctx context.Context) ([]contest.DayOutcome, error) {
	var decoded struct {
		HockeyContestHistory struct {
			History []historyDay `json:"history"`
		} `json:"hockeyContestHistory"`
	}
	status, err := c.doOperation(ctx, "hockeyContestHistory", pickHistoryQuery, map[string]any{"userId": c.userID}, &decoded)
	if err != nil {
		return nil, fmt.Errorf("fetch pick history: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("pick history status=%d", status)
	}

	out := make([]contest.DayOutcome, 0, len(decoded.HockeyContestHistory.History))
	for _, day := range decoded.HockeyContestHistory.History {
		outcome := contest.DayOutcome{Date: day.ContestDate}
		for _, p := range day.Picks {
			graded := contest.GradedPick{
				ListIndex:  p.SetID,
				PlayerID:   p.Player.ID,
				PlayerName: strings.TrimSpace(p.Player.FirstName + " " + p.Player.LastName),
			}
			if p.Correct != nil {
				graded.Graded = true
				graded.Correct = *p.Correct
			}
			outcome.Picks = append(outcome.Picks, graded)
		}
		out = append(out, outcome)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	return out, nil
}

const submitPicksMutation = `mutation submitHockeyPicks($userId: String!, $playerIds: [String!]!) {
  submitHockeyPicks(userId: $userId, playerIds: $playerIds) {
    success
  }
}`

func (c *Client) SubmitPicks(ctx context.Context, playerIDs []string) (int, error) {
	if len(playerIDs) != 3 {
		return 0, fmt.Errorf("%w: expected exactly 3 player ids, got %d", usecase.ErrInvalidInput, len(playerIDs))
	}
	for _, id := range playerIDs {
		if strings.TrimSpace(id) == "" {
			return 0, fmt.Errorf("%w: empty player id", usecase.ErrInvalidInput)
		}
	}

	var decoded struct {
		SubmitHockeyPicks struct {
			Success bool `json:"success"`
		} `json:"submitHockeyPicks"`
	}
	status, err := c.doOperation(ctx, "submitHockeyPicks", submitPicksMutation, map[string]any{
		"userId":    c.userID,
		"playerIds": playerIDs,
	}, &decoded)
	if err != nil {
		return status, fmt.Errorf("submit picks: %w", err)
	}

	if status != http.StatusOK || !decoded.SubmitHockeyPicks.Success {
		return status, fmt.Errorf("%w: status=%d success=%t", usecase.ErrSubmissionRejected, status, decoded.SubmitHockeyPicks.Success)
	}

	return status, nil
}

type graphqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// doOperation posts one GraphQL operation and decodes its data into target.
// Transient failures go through the shared retry policy; an unauthorized
// response routes once through the token refresh path. A non-auth 4xx is
// terminal and surfaced as ErrSubmissionRejected.
func (c *Client) doOperation(ctx context.Context, name, query string, variables map[string]any, target any) (int, error) {
	encoded, err := sonic.Marshal(graphqlRequest{OperationName: name, Query: query, Variables: variables})
	if err != nil {
		return 0, fmt.Errorf("marshal %s request: %w", name, err)
	}

	status, body, err := c.post(ctx, encoded)
	if err != nil {
		return 0, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.logger.WarnContext(ctx, "contest gateway rejected token, refreshing once", "operation", name)
		c.tokens.Invalidate()
		status, body, err = c.post(ctx, encoded)
		if err != nil {
			return 0, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return status, fmt.Errorf("%w: gateway still unauthorized after refresh", usecase.ErrAuthExpired)
		}
	}

	if status >= 400 && status < 500 {
		return status, fmt.Errorf("%w: gateway status=%d", usecase.ErrSubmissionRejected, status)
	}

	var envelope struct {
		Data   sonicRaw       `json:"data"`
		Errors []graphqlError `json:"errors"`
	}
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return status, fmt.Errorf("decode %s response: %w", name, err)
	}
	if len(envelope.Errors) > 0 {
		return status, fmt.Errorf("%w: %s", usecase.ErrSubmissionRejected, envelope.Errors[0].Message)
	}
	if len(envelope.Data) > 0 {
		if err := sonic.Unmarshal(envelope.Data, target); err != nil {
			return status, fmt.Errorf("decode %s data: %w", name, err)
		}
	}

	return status, nil
}

type sonicRaw []byte

func (r *sonicRaw) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

// post sends the request with bounded retries on network errors and 5xx.
func (c *Client) post(ctx context.Context, payload []byte) (int, []byte, error) {
	var (
		status int
		body   []byte
	)
	err := c.retry.Do(ctx, func() error {
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: send request: %v", errTimsTransient, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: read response body: %v", errTimsTransient, err)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: gateway status=%d", errTimsTransient, resp.StatusCode)
		}

		status = resp.StatusCode
		body = raw
		return nil
	}, func(err error) bool { return stderrors.Is(err, errTimsTransient) })
	if err != nil {
		c.logger.WarnContext(ctx, "contest gateway request failed", "error", err)
		return 0, nil, err
	}

	return status, body, nil
}

type boardPayload struct {
	Code        string       `json:"code"`
	ContestDate string       `json:"contestDate" validate:"required"`
	Games       []boardGame  `json:"games"`
	Sets        []boardSet   `json:"sets" validate:"dive"`
	Picks       []lockedPick `json:"picks"`
}

type boardGame struct {
	StartTime string    `json:"startTime"`
	HomeTeam  boardTeam `json:"homeTeam"`
	AwayTeam  boardTeam `json:"awayTeam"`
}

type boardTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type boardSet struct {
	SetID   int           `json:"setId" validate:"min=1,max=3"`
	Players []boardPlayer `json:"players" validate:"dive"`
}

type boardPlayer struct {
	ID        string `json:"id" validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Number    int    `json:"number"`
	TeamID    int64  `json:"teamId"`
}

type lockedPick struct {
	SetID  int         `json:"setId"`
	Player boardPlayer `json:"player"`
}

type historyDay struct {
	ContestDate string `json:"contestDate"`
	Picks       []struct {
		SetID   int         `json:"setId"`
		Correct *bool       `json:"correct"`
		Player  boardPlayer `json:"player"`
	} `json:"picks"`
}

func (p boardPayload) toBoard() contest.Board {
	board := contest.Board{Date: p.ContestDate}

	for _, game := range p.Games {
		row := contest.Game{
			HomeTeamID:   game.HomeTeam.ID,
			HomeTeamName: strings.TrimSpace(game.HomeTeam.Name),
			AwayTeamID:   game.AwayTeam.ID,
			AwayTeamName: strings.TrimSpace(game.AwayTeam.Name),
		}
		if parsed, err := time.Parse(time.RFC3339, game.StartTime); err == nil {
			row.StartAt = parsed
		}
		board.Games = append(board.Games, row)
	}

	sets := append([]boardSet(nil), p.Sets...)
	sort.SliceStable(sets, func(i, j int) bool { return sets[i].SetID < sets[j].SetID })
	for _, set := range sets {
		list := contest.CandidateList{Index: set.SetID}
		for _, item := range set.Players {
			list.Players = append(list.Players, player.Player{
				ID:        item.ID,
				FirstName: strings.TrimSpace(item.FirstName),
				LastName:  strings.TrimSpace(item.LastName),
				Number:    item.Number,
				TeamID:    item.TeamID,
			})
		}
		board.Lists = append(board.Lists, list)
	}

	for _, locked := range p.Picks {
		board.LockedPicks = append(board.LockedPicks, contest.Pick{
			ListIndex:    locked.SetID,
			PlayerID:     locked.Player.ID,
			PlayerName:   strings.TrimSpace(locked.Player.FirstName + " " + locked.Player.LastName),
			RankPosition: 1,
		})
	}

	return board
}
