package rotowire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/dvrlndr/autopicker/internal/platform/logging"
)

const defaultReportURL = "https://www.rotowire.com/hockey/tables/injury-report.php?team=ALL&pos=ALL"

type ClientConfig struct {
	HTTPClient *http.Client
	ReportURL  string
	Timeout    time.Duration
	Logger     *logging.Logger
}

// Client reads the public injury-report table. Best effort only: ranking
// proceeds without injury flags if this feed is down.
type Client struct {
	httpClient *http.Client
	reportURL  string
	logger     *logging.Logger
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
		httpClient.Timeout = 10 * time.Second
	}

	reportURL := strings.TrimSpace(cfg.ReportURL)
	if reportURL == "" {
		reportURL = defaultReportURL
	}

	return &Client{
		httpClient: httpClient,
		reportURL:  reportURL,
		logger:     logger,
	}
}

func (c *Client) InjuredPlayerNames(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.reportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch injury report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("injury report status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read injury report: %w", err)
	}

	var rows []struct {
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
	}
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode injury report: %w", err)
	}

	out := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.FirstName + " " + row.LastName)
		if name == "" {
			continue
		}
		out[name] = struct{}{}
	}

	return out, nil
}
