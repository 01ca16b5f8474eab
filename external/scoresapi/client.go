package scoresapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"

	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/platform/resilience"
)

const (
	defaultBaseURL   = "https://nhl-score-api.herokuapp.com"
	maxResponseBytes = 6 << 20
	dateFormat       = "2006-01-02"
)

var errScoresTransient = crerr.New("scores transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	Retry          resilience.RetryPolicy
	CircuitBreaker resilience.CircuitBreakerConfig
	Logger         *logging.Logger
}

// Client reads the community scores API used as the second statistics feed:
// goal scorers from finished games over a recent window.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	retry          resilience.RetryPolicy
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight[[]byte]
	logger         *logging.Logger
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

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		retry:          resilience.NormalizeRetryPolicy(cfg.Retry),
		breaker:        resilience.NewCircuitBreaker(breakerCfg),
		circuitEnabled: breakerCfg.Enabled,
		logger:         logger,
	}
}

// RecentGoalScorers returns goal counts per scorer full name from FINAL games
// inside the window.
func (c *Client) RecentGoalScorers(ctx context.Context, from, to time.Time) (map[string]int, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid window: end before start")
	}

	fullURL := fmt.Sprintf("%s/api/scores?startDate=%s&endDate=%s",
		c.baseURL, from.Format(dateFormat), to.Format(dateFormat))

	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "scores circuit breaker rejected request", "state", c.breaker.State())
			return nil, fmt.Errorf("scores api is temporarily unavailable: %w", err)
		}
	}

	raw, err, _ := c.flight.Do(fullURL, func() ([]byte, error) {
		raw, reqErr := c.executeRequest(ctx, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && stderrors.Is(reqErr, errScoresTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch recent goal scorers: %w", err)
	}

	var days []scoreDay
	if err := sonic.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("decode scores payload: %w", err)
	}

	scorers := make(map[string]int)
	for _, day := range days {
		for _, game := range day.Games {
			if game.Status.State != "FINAL" {
				continue
			}
			for _, goal := range game.Goals {
				name := strings.TrimSpace(goal.Scorer.Player)
				if name == "" {
					continue
				}
				scorers[name]++
			}
		}
	}

	return scorers, nil
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
			return fmt.Errorf("%w: send request: %v", errScoresTransient, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("%w: read response body: %v", errScoresTransient, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("%w: scores status=%d", errScoresTransient, resp.StatusCode)
			}
			return fmt.Errorf("scores status=%d", resp.StatusCode)
		}

		raw = body
		return nil
	}, func(err error) bool { return stderrors.Is(err, errScoresTransient) })
	if err != nil {
		c.logger.WarnContext(ctx, "scores request failed", "url", fullURL, "error", err)
		return nil, err
	}

	return raw, nil
}

type scoreDay struct {
	Games []struct {
		Status struct {
			State string `json:"state"`
		} `json:"status"`
		Goals []struct {
			Scorer struct {
				Player string `json:"player"`
			} `json:"scorer"`
		} `json:"goals"`
	} `json:"games"`
}
