package cognito

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

const (
	defaultEndpoint = "https://cognito-idp.us-east-1.amazonaws.com/"
	initiateAuth    = "AWSCognitoIdentityProviderService.InitiateAuth"
	contentType     = "application/x-amz-json-1.1"

	// expirySkew forces a refresh slightly before the reported expiry so a
	// token never dies mid-request.
	expirySkew = 30 * time.Second
)

type ClientConfig struct {
	HTTPClient   *http.Client
	Endpoint     string
	ClientID     string
	RefreshToken string
	UserAgent    string
	Logger       *logging.Logger
	Clock        clockwork.Clock
}

// Client owns the access-token lifecycle for the contest gateway. It caches
// the access token until expiry and performs at most one refresh exchange per
// call. A rejected refresh token is terminal: the operator has to capture a
// new one through the sign-in flow, so every later call fails fast instead of
// hammering the token endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	clientID   string
	userAgent  string
	logger     *logging.Logger
	clock      clockwork.Clock

	mu           sync.Mutex
	refreshToken string
	accessToken  string
	expiresAt    time.Time
	fatal        bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		httpClient:   httpClient,
		endpoint:     endpoint,
		clientID:     strings.TrimSpace(cfg.ClientID),
		userAgent:    strings.TrimSpace(cfg.UserAgent),
		logger:       logger,
		clock:        clock,
		refreshToken: strings.TrimSpace(cfg.RefreshToken),
	}
}

func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fatal {
		return "", fmt.Errorf("%w: refresh token was rejected earlier in this run", usecase.ErrAuthExpired)
	}

	now := c.clock.Now()
	if c.accessToken != "" && now.Before(c.expiresAt.Add(-expirySkew)) {
		return c.accessToken, nil
	}

	if err := c.refresh(ctx); err != nil {
		return "", err
	}

	return c.accessToken, nil
}

func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
	c.expiresAt = time.Time{}
}

// refresh performs one REFRESH_TOKEN_AUTH exchange. Caller holds c.mu.
func (c *Client) refresh(ctx context.Context) error {
	if c.refreshToken == "" {
		c.fatal = true
		return fmt.Errorf("%w: no refresh token configured", usecase.ErrAuthExpired)
	}

	payload := initiateAuthRequest{
		AuthFlow: "REFRESH_TOKEN_AUTH",
		ClientID: c.clientID,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": c.refreshToken,
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal token refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create token refresh request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Amz-Target", initiateAuth)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read token refresh response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// The identity provider rejected the refresh token itself. Not
		// recoverable without a human re-running the token capture flow.
		c.fatal = true
		var denied cognitoError
		_ = json.Unmarshal(body, &denied)
		c.logger.ErrorContext(ctx, "token refresh rejected",
			"status_code", resp.StatusCode,
			"error_type", denied.Type,
		)
		return fmt.Errorf("%w: identity provider rejected refresh (status %d)", usecase.ErrAuthExpired, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token refresh failed with status %d", resp.StatusCode)
	}

	var decoded initiateAuthResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("unmarshal token refresh response: %w", err)
	}

	result := decoded.AuthenticationResult
	if strings.TrimSpace(result.AccessToken) == "" {
		return fmt.Errorf("invalid token refresh response: access token is empty")
	}

	c.accessToken = result.AccessToken
	c.expiresAt = c.clock.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	if rotated := strings.TrimSpace(result.RefreshToken); rotated != "" {
		c.refreshToken = rotated
	}

	c.logger.DebugContext(ctx, "access token refreshed",
		"token_sha", hashToken(c.accessToken),
		"expires_at", c.expiresAt.UTC().Format(time.RFC3339),
	)

	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientID       string            `json:"ClientId"`
	AuthParameters map[string]string `json:"AuthParameters"`
}

type initiateAuthResponse struct {
	AuthenticationResult struct {
		AccessToken  string `json:"AccessToken"`
		RefreshToken string `json:"RefreshToken"`
		TokenType    string `json:"TokenType"`
		ExpiresIn    int    `json:"ExpiresIn"`
	} `json:"AuthenticationResult"`
}

type cognitoError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}
