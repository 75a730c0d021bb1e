package cmd

import (
	"context"
	"fmt"
	"time"

	"weatherbot/application"
	"weatherbot/clock"
	"weatherbot/config"
	"weatherbot/database"
	"weatherbot/events"
	"weatherbot/metrics"
	"weatherbot/repository"
	"weatherbot/repository/filestore"
	"weatherbot/service"
	"weatherbot/weather"

	log "github.com/sirupsen/logrus"
)

// App holds the wired engine and the resources it owns
type App struct {
	Config    *config.Config
	Bus       *events.Bus
	Metrics   *metrics.Metrics
	Engine    *application.Engine
	Pipeline  *application.PollingPipeline
	Summaries *application.SummaryPublisher

	closeStorage func()
}

type storage struct {
	uowFactory service.UnitOfWorkFactory
	usage      service.ApiUsageRepository
	close      func()
}

// NewApp opens the configured storage backend and wires every service
func NewApp(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*App, error) {
	eventBus := events.NewBus()

	store, err := openStorage(ctx, cfg, eventBus)
	if err != nil {
		return nil, err
	}

	clk := clock.System()
	loc := cfg.Location()

	client := weather.NewClient(weather.ClientConfig{
		BaseURL:       cfg.WeatherAPIBaseURL,
		APIKey:        cfg.WeatherAPIKey,
		Timeout:       cfg.WeatherTimeout,
		RatePerMinute: cfg.WeatherRatePerMinute,
		Metrics:       m,
	})
	resolver := weather.NewResolver(cfg.FourDigitCountry)

	quota := service.NewQuotaTracker(store.usage, cfg.WeatherAPIDailyLimit,
		service.WithClock(clk),
		service.WithLocation(loc),
		service.WithPaceBase(cfg.PaceBase),
		service.WithQuotaMetrics(m),
	)
	calculator := service.NewPointCalculator()
	registry := service.NewRegistryService(store.uowFactory, clk)
	ledger := service.NewScoreLedger(store.uowFactory, calculator, clk, loc)
	leaderboard := service.NewLeaderboardService(store.uowFactory, clk, loc)
	fetcher := service.NewWeatherFetcher(client, resolver, quota, clk)

	pipeline := application.NewPollingPipeline(registry, fetcher, calculator, ledger, quota, eventBus,
		application.WithPipelineMetrics(m),
		application.WithPipelineClock(clk),
	)

	engine := application.NewEngine(application.EngineDeps{
		Registry:    registry,
		Resolver:    resolver,
		Fetcher:     fetcher,
		Calculator:  calculator,
		Ledger:      ledger,
		Leaderboard: leaderboard,
		Quota:       quota,
		Pipeline:    pipeline,
		Clock:       clk,
	})

	return &App{
		Config:       cfg,
		Bus:          eventBus,
		Metrics:      m,
		Engine:       engine,
		Pipeline:     pipeline,
		Summaries:    application.NewSummaryPublisher(leaderboard, eventBus, clk, loc),
		closeStorage: store.close,
	}, nil
}

// Close releases the storage backend
func (a *App) Close() {
	if a.closeStorage != nil {
		a.closeStorage()
	}
}

func openStorage(ctx context.Context, cfg *config.Config, eventBus *events.Bus) (*storage, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendFile:
		log.WithField("path", cfg.FilestorePath).Info("Opening file store...")
		store, err := filestore.Open(cfg.FilestorePath, eventBus)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return &storage{
			uowFactory: store.UnitOfWorkFactory(),
			usage:      store.UsageRepository(),
			close:      func() {},
		}, nil

	case config.StorageBackendPostgres, "":
		log.Info("Connecting to database...")
		if cfg.MigrateOnStart {
			if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		db, err := database.NewConnection(ctx, cfg.GetDatabaseURL(),
			database.WithMaxConns(cfg.DatabaseMaxConns),
			database.WithConnectRetry(cfg.DatabaseConnectRetries, 2*time.Second),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info("Database connection established successfully")
		return &storage{
			uowFactory: repository.NewUnitOfWorkFactory(db, eventBus),
			usage:      repository.NewApiUsageRepository(db),
			close: func() {
				log.Info("Closing database connection...")
				db.Close()
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
