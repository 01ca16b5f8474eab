package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/platform/resilience"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	HistoryBackendFile     = "file"
	HistoryBackendPostgres = "postgres"
)

// Config stores runtime configuration for the autopicker.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string
	LogLevel       logging.Level

	// Contest account credentials captured during the one-time sign-in flow.
	UserAgent    string
	ClientID     string
	RefreshToken string
	UserID       string

	CognitoEndpoint string
	TimsGraphQLURL  string
	TimsTimeout     time.Duration

	NHLStatsBaseURL string
	NHLWebBaseURL   string
	NHLTimeout      time.Duration

	ScoresBaseURL string
	ScoresTimeout time.Duration

	RotowireEnabled bool
	RotowireURL     string
	RotowireTimeout time.Duration

	RecentDays        int
	StatsFetchWorkers int

	Retry          resilience.RetryPolicy
	CircuitBreaker resilience.CircuitBreakerConfig

	DryRun bool

	HistoryBackend string
	HistoryPath    string
	DBURL          string

	UptraceEnabled bool
	UptraceDSN     string
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	userAgent := strings.TrimSpace(getEnv("USER_AGENT", ""))
	clientID := strings.TrimSpace(getEnv("CLIENT_ID", ""))
	refreshToken := strings.TrimSpace(getEnv("REFRESH_TOKEN", ""))
	userID := strings.TrimSpace(getEnv("USER_ID", ""))
	for key, value := range map[string]string{
		"USER_AGENT":    userAgent,
		"CLIENT_ID":     clientID,
		"REFRESH_TOKEN": refreshToken,
		"USER_ID":       userID,
	} {
		if value == "" {
			return Config{}, fmt.Errorf("%s is required", key)
		}
	}

	timsTimeout, err := getEnvAsDuration("TIMS_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	nhlTimeout, err := getEnvAsDuration("NHL_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, err
	}
	scoresTimeout, err := getEnvAsDuration("SCORES_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, err
	}
	rotowireTimeout, err := getEnvAsDuration("ROTOWIRE_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}

	rotowireEnabled, err := getEnvAsBool("ROTOWIRE_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	recentDays, err := getEnvAsInt("STATS_RECENT_DAYS", 5)
	if err != nil {
		return Config{}, err
	}
	if recentDays < 1 {
		return Config{}, fmt.Errorf("STATS_RECENT_DAYS must be >= 1")
	}

	fetchWorkers, err := getEnvAsInt("STATS_FETCH_WORKERS", 8)
	if err != nil {
		return Config{}, err
	}
	if fetchWorkers < 1 {
		return Config{}, fmt.Errorf("STATS_FETCH_WORKERS must be >= 1")
	}

	maxAttempts, err := getEnvAsInt("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	if maxAttempts < 1 {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	retryBaseDelay, err := getEnvAsDuration("RETRY_BASE_DELAY", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	retryMaxDelay, err := getEnvAsDuration("RETRY_MAX_DELAY", 8*time.Second)
	if err != nil {
		return Config{}, err
	}

	circuitEnabled, err := getEnvAsBool("FEED_CIRCUIT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	circuitFailureCount, err := getEnvAsInt("FEED_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, err
	}
	circuitOpenTimeout, err := getEnvAsDuration("FEED_CIRCUIT_OPEN_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	circuitHalfOpenMaxReq, err := getEnvAsInt("FEED_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, err
	}

	dryRun, err := getEnvAsBool("DRY_RUN", false)
	if err != nil {
		return Config{}, err
	}

	historyBackend := strings.ToLower(strings.TrimSpace(getEnv("HISTORY_BACKEND", HistoryBackendFile)))
	switch historyBackend {
	case HistoryBackendFile, HistoryBackendPostgres:
	default:
		return Config{}, fmt.Errorf("invalid HISTORY_BACKEND %q: valid values are %s, %s", historyBackend, HistoryBackendFile, HistoryBackendPostgres)
	}

	dbURL := strings.TrimSpace(getEnv("DB_URL", ""))
	if historyBackend == HistoryBackendPostgres && dbURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required when HISTORY_BACKEND=postgres")
	}

	uptraceEnabled, err := getEnvAsBool("UPTRACE_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	return Config{
		AppEnv:         appEnv,
		ServiceName:    getEnv("SERVICE_NAME", "autopicker"),
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),

		UserAgent:    userAgent,
		ClientID:     clientID,
		RefreshToken: refreshToken,
		UserID:       userID,

		CognitoEndpoint: strings.TrimSpace(getEnv("COGNITO_ENDPOINT", "https://cognito-idp.us-east-1.amazonaws.com/")),
		TimsGraphQLURL:  strings.TrimSpace(getEnv("TIMS_GRAPHQL_URL", "https://use1-prod-th-gateway.rbictg.com/graphql")),
		TimsTimeout:     timsTimeout,

		NHLStatsBaseURL: strings.TrimSpace(getEnv("NHL_STATS_BASE_URL", "https://api.nhle.com/stats/rest/en")),
		NHLWebBaseURL:   strings.TrimSpace(getEnv("NHL_WEB_BASE_URL", "https://api-web.nhle.com/v1")),
		NHLTimeout:      nhlTimeout,

		ScoresBaseURL: strings.TrimSpace(getEnv("SCORES_BASE_URL", "https://nhl-score-api.herokuapp.com")),
		ScoresTimeout: scoresTimeout,

		RotowireEnabled: rotowireEnabled,
		RotowireURL:     strings.TrimSpace(getEnv("ROTOWIRE_URL", "https://www.rotowire.com/hockey/tables/injury-report.php?team=ALL&pos=ALL")),
		RotowireTimeout: rotowireTimeout,

		RecentDays:        recentDays,
		StatsFetchWorkers: fetchWorkers,

		Retry: resilience.RetryPolicy{
			MaxAttempts: maxAttempts,
			BaseDelay:   retryBaseDelay,
			MaxDelay:    retryMaxDelay,
		},
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          circuitEnabled,
			FailureThreshold: circuitFailureCount,
			OpenTimeout:      circuitOpenTimeout,
			HalfOpenMaxReq:   circuitHalfOpenMaxReq,
		},

		DryRun: dryRun,

		HistoryBackend: historyBackend,
		HistoryPath:    strings.TrimSpace(getEnv("HISTORY_PATH", "./data")),
		DBURL:          dbURL,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,
	}, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(getEnv(key, strconv.Itoa(fallback)))
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(getEnv(key, strconv.FormatBool(fallback)))
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getEnv(key, fallback.String()))
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
