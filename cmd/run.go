package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"weatherbot/application"
	"weatherbot/bot"
	"weatherbot/clock"
	"weatherbot/config"
	"weatherbot/infrastructure"
	"weatherbot/metrics"
	"weatherbot/scheduler"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// ConfigureLogging applies the configured level and formatter
func ConfigureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	ConfigureLogging(cfg)
	log.Info("Starting weather bot...")

	m := metrics.New()
	var metricsErr <-chan error
	var stopMetrics func()
	if cfg.MetricsAddr != "" {
		server, errCh := m.Serve(cfg.MetricsAddr)
		metricsErr = errCh
		stopMetrics = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("Error shutting down metrics server")
			}
		}
		log.WithField("addr", cfg.MetricsAddr).Info("Metrics server listening")
	}

	app, err := NewApp(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer app.Close()

	// Forward committed events to NATS
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		log.WithField("servers", cfg.NATSServers).Info("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		mapper := infrastructure.NewEventSubjectMapper()
		if err := infrastructure.EnsureDomainEventStream(natsClient, mapper); err != nil {
			log.WithError(err).Warn("Failed to ensure domain event stream, events may be dropped")
		}
		infrastructure.NewNATSEventPublisher(natsClient, mapper).Attach(app.Bus)
	}

	// Post summaries to Discord
	var session *discordgo.Session
	if cfg.DiscordToken != "" && cfg.SummaryChannelID != "" {
		log.Info("Connecting to Discord...")
		session, err = discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("error creating discord session: %w", err)
		}
		session.Identify.Intents = discordgo.IntentsGuildMessages
		if err := session.Open(); err != nil {
			return fmt.Errorf("error opening connection: %w", err)
		}
		bot.NewSummaryPoster(session, cfg.SummaryChannelID, true).Attach(app.Bus)
		log.WithField("channel_id", cfg.SummaryChannelID).Info("Discord summary poster attached")
	}

	stops := startSchedules(ctx, cfg, app)

	log.Infof("Weather bot is running in %s mode...", cfg.Environment)
	select {
	case <-ctx.Done():
	case err := <-metricsErr:
		if err != nil {
			log.WithError(err).Error("Metrics server failed")
		}
	}

	log.Info("Shutting down weather bot...")
	for _, stop := range stops {
		stop()
	}

	// Let in-flight announcements and forwards finish before closing transports
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
	if err := app.Bus.Drain(drainCtx); err != nil {
		log.WithError(err).Warn("Event handlers still running at shutdown")
	}
	cancelDrain()

	if session != nil {
		if err := session.Close(); err != nil {
			log.WithError(err).Error("Error closing Discord session")
		}
	}
	if natsClient != nil {
		if err := natsClient.Close(); err != nil {
			log.WithError(err).Error("Error closing NATS connection")
		}
	}
	if stopMetrics != nil {
		stopMetrics()
	}

	log.Info("Shutdown completed")
	return nil
}

func startSchedules(ctx context.Context, cfg *config.Config, app *App) []func() {
	sched := scheduler.New(clock.System())
	var stops []func()

	if cfg.HourlyCheckEnabled {
		stops = append(stops, sched.Start(ctx, "hourly-check", scheduler.Hourly{}, func(ctx context.Context) {
			if _, err := app.Engine.CheckAllUsersWeather(ctx); err != nil {
				if errors.Is(err, application.ErrPipelineBusy) {
					return
				}
				log.WithError(err).Error("Hourly weather check failed")
			}
		}))
	}

	stops = append(stops, sched.Start(ctx, "daily-summary", scheduler.Daily{Hour: cfg.DailySummaryHour, Location: time.UTC}, func(ctx context.Context) {
		if _, err := app.Summaries.Daily(ctx); err != nil {
			log.WithError(err).Error("Failed to publish daily summary")
		}
	}))

	stops = append(stops, sched.Start(ctx, "weekly-summary", scheduler.Weekly{Weekday: cfg.WeeklySummaryDay, Hour: cfg.WeeklySummaryHour, Location: time.UTC}, func(ctx context.Context) {
		if _, err := app.Summaries.Weekly(ctx); err != nil {
			log.WithError(err).Error("Failed to publish weekly summary")
		}
	}))

	return stops
}
