package app

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dvrlndr/autopicker/external/nhl"
	"github.com/dvrlndr/autopicker/external/rotowire"
	"github.com/dvrlndr/autopicker/external/scoresapi"
	"github.com/dvrlndr/autopicker/external/tims"
	"github.com/dvrlndr/autopicker/internal/config"
	"github.com/dvrlndr/autopicker/internal/domain/history"
	"github.com/dvrlndr/autopicker/internal/infrastructure/account/cognito"
	filerepo "github.com/dvrlndr/autopicker/internal/infrastructure/repository/file"
	"github.com/dvrlndr/autopicker/internal/infrastructure/repository/postgres"
	"github.com/dvrlndr/autopicker/internal/platform/logging"
	"github.com/dvrlndr/autopicker/internal/usecase"
)

// App bundles the wired run components. Close releases the database handle
// when the postgres backend is active.
type App struct {
	Picker   *usecase.Autopicker
	Reporter *usecase.Reporter
	History  history.Repository

	db *sqlx.DB
}

// New wires every component from configuration. All outbound HTTP goes
// through otelhttp so runs show up as traces when Uptrace is enabled.
func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	tokens := cognito.NewClient(cognito.ClientConfig{
		HTTPClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.TimsTimeout},
		Endpoint:     cfg.CognitoEndpoint,
		ClientID:     cfg.ClientID,
		RefreshToken: cfg.RefreshToken,
		UserAgent:    cfg.UserAgent,
		Logger:       logger,
	})

	gateway := tims.NewClient(tims.ClientConfig{
		HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.TimsTimeout},
		GraphQLURL: cfg.TimsGraphQLURL,
		UserAgent:  cfg.UserAgent,
		UserID:     cfg.UserID,
		Tokens:     tokens,
		Timeout:    cfg.TimsTimeout,
		Retry:      cfg.Retry,
		Logger:     logger,
	})

	nhlClient := nhl.NewClient(nhl.ClientConfig{
		HTTPClient:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.NHLTimeout},
		StatsBaseURL:   cfg.NHLStatsBaseURL,
		WebBaseURL:     cfg.NHLWebBaseURL,
		Timeout:        cfg.NHLTimeout,
		Retry:          cfg.Retry,
		CircuitBreaker: cfg.CircuitBreaker,
		Logger:         logger,
	})

	scoresClient := scoresapi.NewClient(scoresapi.ClientConfig{
		HTTPClient:     &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.ScoresTimeout},
		BaseURL:        cfg.ScoresBaseURL,
		Timeout:        cfg.ScoresTimeout,
		Retry:          cfg.Retry,
		CircuitBreaker: cfg.CircuitBreaker,
		Logger:         logger,
	})

	var injuries usecase.InjurySource
	if cfg.RotowireEnabled {
		injuries = rotowire.NewClient(rotowire.ClientConfig{
			HTTPClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: cfg.RotowireTimeout},
			ReportURL:  cfg.RotowireURL,
			Timeout:    cfg.RotowireTimeout,
			Logger:     logger,
		})
	}

	app := &App{}
	repo, db, err := newHistoryRepository(cfg)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.History = repo

	feed := usecase.NewStatsFeed(usecase.StatsFeedConfig{
		NHL:        nhlClient,
		Scores:     scoresClient,
		Injuries:   injuries,
		Workers:    cfg.StatsFetchWorkers,
		RecentDays: cfg.RecentDays,
		Logger:     logger,
	})

	app.Picker = usecase.NewAutopicker(usecase.AutopickerConfig{
		Gateway: gateway,
		Stats:   feed,
		Ranker:  usecase.NewRanker(),
		History: repo,
		DryRun:  cfg.DryRun,
		Logger:  logger,
	})
	app.Reporter = usecase.NewReporter(gateway, logger)

	return app, nil
}

func newHistoryRepository(cfg config.Config) (history.Repository, *sqlx.DB, error) {
	switch cfg.HistoryBackend {
	case config.HistoryBackendPostgres:
		db, err := sqlx.Connect("postgres", cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect history db: %w", err)
		}
		return postgres.NewHistoryRepository(db), db, nil
	case config.HistoryBackendFile:
		repo, err := filerepo.NewHistoryRepository(cfg.HistoryPath)
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", cfg.HistoryBackend)
	}
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
