package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/slipstream/imagefetch/internal/api"
	"github.com/slipstream/imagefetch/internal/api/ratelimit"
	"github.com/slipstream/imagefetch/internal/config"
	"github.com/slipstream/imagefetch/internal/health"
	"github.com/slipstream/imagefetch/internal/logger"
	"github.com/slipstream/imagefetch/internal/metadata/tmdb"
	"github.com/slipstream/imagefetch/internal/metrics"
	"github.com/slipstream/imagefetch/internal/scheduler"
	"github.com/slipstream/imagefetch/internal/scheduler/tasks"
	"github.com/slipstream/imagefetch/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env-file", ".env", "Path to an optional .env file")
	flag.Parse()

	// A missing .env file is normal outside development.
	_ = godotenv.Load(*envFile)

	store := config.NewStore(config.TMDBConfig{})

	var reloads reloadLogger
	cfg, err := config.Watch(*configPath, store, reloads.onChange, reloads.onError)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
		BufferSize:      1000,
	})
	defer log.Close()
	reloads.setLogger(log.Logger)

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting imagefetch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Enable log streaming via WebSocket now that hub is available
	log.SetBroadcastHub(hub)

	healthService := health.NewService(log.Logger)
	healthService.SetBroadcaster(hub)

	// Requests are bounded by the caller's context, not a client timeout.
	httpClient := &http.Client{}
	provider := tmdb.NewProvider(httpClient, log.Logger)

	deps := api.Deps{
		Provider: provider,
		Store:    store,
		Hub:      hub,
		Logs:     log,
		Health:   healthService,
		Limiter:  ratelimit.NewIPLimiter(cfg.RateLimit.ProxyPerMinute),
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(registry)
		provider.SetMetrics(m)
		deps.Metrics = m
		deps.Gatherer = registry
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	deps.Scheduler = sched

	healthTask := tasks.NewProviderHealthTask(provider, store, healthService, log.Logger)
	if err := tasks.RegisterProviderHealthTask(sched, healthTask, &cfg.Health); err != nil {
		log.Fatal().Err(err).Msg("failed to register TMDB health task")
	}
	if err := tasks.RegisterRateLimitCleanupTask(sched, deps.Limiter); err != nil {
		log.Fatal().Err(err).Msg("failed to register rate limit cleanup task")
	}

	server := api.NewServer(cfg, deps, log.Logger)

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("server stopped")
}
