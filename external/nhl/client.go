package nhl

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"

	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/platform/resilience"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

const (
	defaultStatsBaseURL = "https://api.nhle.com/stats/rest/en"
	defaultWebBaseURL   = "https://api-web.nhle.com/v1"
	maxResponseBytes    = 6 << 20
)

var errNHLTransient = crerr.New("nhl transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	StatsBaseURL   string
	WebBaseURL     string
	Timeout        time.Duration
	Retry          resilience.RetryPolicy
	CircuitBreaker resilience.CircuitBreakerConfig
	Logger         *logging.Logger
	Clock          clockwork.Clock
}

// Client reads the official NHL API: the league team list, per-team rosters,
// and per-player landing pages with season totals and recent-game goals.
type Client struct {
	httpClient     *http.Client
	statsBaseURL   string
	webBaseURL     string
	retry          resilience.RetryPolicy
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight[[]byte]
	logger         *logging.Logger
	clock          clockwork.Clock
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
		httpClient.Timeout = 20 * time.Second
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		statsBaseURL:   normalizeBaseURL(cfg.StatsBaseURL, defaultStatsBaseURL),
		webBaseURL:     normalizeBaseURL(cfg.WebBaseURL, defaultWebBaseURL),
		retry:          resilience.NormalizeRetryPolicy(cfg.Retry),
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
		logger:         logger,
		clock:          clock,
	}
}

func (c *Client) TeamList(ctx context.Context) ([]usecase.NHLTeamRow, error) {
	var envelope teamListEnvelope
	if err := c.doJSON(ctx, c.statsBaseURL+"/team", &envelope); err != nil {
		return nil, fmt.Errorf("fetch nhl team list: %w", err)
	}

	out := make([]usecase.NHLTeamRow, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		if item.ID <= 0 || strings.TrimSpace(item.TriCode) == "" {
			continue
		}
		out = append(out, usecase.NHLTeamRow{
			ID:   item.ID,
			Name: strings.TrimSpace(item.FullName),
			Abbr: strings.ToUpper(strings.TrimSpace(item.TriCode)),
		})
	}

	return out, nil
}

func (c *Client) Roster(ctx context.Context, teamAbbr string) ([]usecase.NHLRosterRow, error) {
	teamAbbr = strings.ToUpper(strings.TrimSpace(teamAbbr))
	if teamAbbr == "" {
		return nil, fmt.Errorf("team abbreviation is required")
	}

	url := fmt.Sprintf("%s/roster/%s/%s", c.webBaseURL, teamAbbr, c.season())
	var envelope rosterEnvelope
	if err := c.doJSON(ctx, url, &envelope); err != nil {
		return nil, fmt.Errorf("fetch roster team=%s: %w", teamAbbr, err)
	}

	// Goalies are excluded: the contest only ever lists goal scorers.
	skaters := make([]rosterPlayer, 0, len(envelope.Forwards)+len(envelope.Defensemen))
	skaters = append(skaters, envelope.Forwards...)
	skaters = append(skaters, envelope.Defensemen...)

	out := make([]usecase.NHLRosterRow, 0, len(skaters))
	for _, item := range skaters {
		if item.ID <= 0 {
			continue
		}
		out = append(out, usecase.NHLRosterRow{
			PlayerID:  item.ID,
			FirstName: strings.TrimSpace(item.FirstName.Default),
			LastName:  strings.TrimSpace(item.LastName.Default),
			Number:    item.SweaterNumber,
		})
	}

	return out, nil
}

func (c *Client) PlayerLanding(ctx context.Context, playerID int64) (usecase.NHLSeasonRow, error) {
	if playerID <= 0 {
		return usecase.NHLSeasonRow{}, fmt.Errorf("player id must be greater than zero")
	}

	url := fmt.Sprintf("%s/player/%d/landing", c.webBaseURL, playerID)
	var envelope landingEnvelope
	if err := c.doJSON(ctx, url, &envelope); err != nil {
		return usecase.NHLSeasonRow{}, fmt.Errorf("fetch landing player_id=%d: %w", playerID, err)
	}

	season, err := strconv.Atoi(c.season())
	if err != nil {
		return usecase.NHLSeasonRow{}, fmt.Errorf("parse season string: %w", err)
	}

	// Season totals are chronological; walk from the back until we leave the
	// current season, keeping the NHL row (players can also carry AHL rows).
	var totals *seasonTotal
	for i := len(envelope.SeasonTotals) - 1; i >= 0; i-- {
		row := envelope.SeasonTotals[i]
		if row.Season != season {
			break
		}
		if row.LeagueAbbrev == "NHL" {
			totals = &row
			break
		}
	}

	var out usecase.NHLSeasonRow
	for _, game := range envelope.Last5Games {
		out.RecentGoals += game.Goals
	}

	if totals == nil {
		c.logger.DebugContext(ctx, "no current-season nhl totals for player", "player_id", playerID)
		return out, nil
	}

	out.GamesPlayed = totals.GamesPlayed
	out.Goals = totals.Goals
	out.Assists = totals.Assists
	out.Points = totals.Points
	out.Shots = totals.Shots
	out.ShootingPct = totals.ShootingPctg
	out.PlusMinus = totals.PlusMinus
	out.AvgTOISeconds = parseTOISeconds(totals.AvgTOI)

	return out, nil
}

// season returns the NHL season string (YYYYYYYY). Seasons start in the fall,
// so July works as the rollover cutoff.
func (c *Client) season() string {
	now := c.clock.Now()
	startYear := now.Year()
	if now.Month() < time.July {
		startYear--
	}
	return fmt.Sprintf("%d%d", startYear, startYear+1)
}

func (c *Client) doJSON(ctx context.Context, fullURL string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "nhl circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: nhl api is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	raw, err, _ := c.flight.Do(fullURL, func() ([]byte, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && isTransient(reqErr) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode nhl payload: %w", err)
	}

	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var raw []byte
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: send request: %v", errNHLTransient, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: read response body: %v", errNHLTransient, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) {
				return fmt.Errorf("%w: nhl status=%d", errNHLTransient, resp.StatusCode)
			}
			return fmt.Errorf("nhl status=%d body=%s", resp.StatusCode, abbreviateBody(body))
		}

		raw = body
		return nil
	}, isTransient)
	if err != nil {
		c.logger.WarnContext(ctx, "nhl request failed", "url", fullURL, "error", err)
		return nil, err
	}

	return raw, nil
}

func isTransient(err error) bool {
	return stderrors.Is(err, errNHLTransient)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}

func abbreviateBody(raw []byte) string {
	const maxLen = 256
	body := strings.TrimSpace(string(raw))
	if len(body) > maxLen {
		return body[:maxLen] + "..."
	}
	return body
}

func normalizeBaseURL(value, fallback string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

func parseTOISeconds(raw string) int {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	seconds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0
	}
	return minutes*60 + seconds
}

type teamListEnvelope struct {
	Data []struct {
		ID       int64  `json:"id"`
		FullName string `json:"fullName"`
		TriCode  string `json:"triCode"`
	} `json:"data"`
}

type localizedName struct {
	Default string `json:"default"`
}

type rosterPlayer struct {
	ID            int64         `json:"id"`
	FirstName     localizedName `json:"firstName"`
	LastName      localizedName `json:"lastName"`
	SweaterNumber int           `json:"sweaterNumber"`
}

type rosterEnvelope struct {
	Forwards   []rosterPlayer `json:"forwards"`
	Defensemen []rosterPlayer `json:"defensemen"`
}

type seasonTotal struct {
	Season       int     `json:"season"`
	LeagueAbbrev string  `json:"leagueAbbrev"`
	GamesPlayed  int     `json:"gamesPlayed"`
	Goals        int     `json:"goals"`
	Assists      int     `json:"assists"`
	Points       int     `json:"points"`
	Shots        int     `json:"shots"`
	ShootingPctg float64 `json:"shootingPctg"`
	PlusMinus    int     `json:"plusMinus"`
	AvgTOI       string  `json:"avgToi"`
}

type landingEnvelope struct {
	SeasonTotals []seasonTotal `json:"seasonTotals"`
	Last5Games   []struct {
		Goals int `json:"goals"`
	} `json:"last5Games"`
}
