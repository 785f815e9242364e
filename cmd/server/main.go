package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"check-orchestrator/api/rest/routes"
	"check-orchestrator/config"
	"check-orchestrator/core/classifier"
	"check-orchestrator/core/dispatcher"
	"check-orchestrator/core/driver"
	"check-orchestrator/core/metrics"
	"check-orchestrator/core/models"
	"check-orchestrator/core/proxypool"
	"check-orchestrator/core/ratelimit"
	"check-orchestrator/core/scheduler"
	"check-orchestrator/storage"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	if cfg.APIKey == "" {
		log.Fatal().Msg("API_KEY must be set")
	}

	sites, err := config.LoadSites(cfg.SitesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load site catalog")
	}

	proxies, err := config.LoadProxies(cfg.ProxiesFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load proxy list")
	}

	zips, err := config.LoadZipCodes(cfg.ZipFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load ZIP codes")
	}

	pool := proxypool.New(proxies, cfg.FailureThreshold, cfg.CooldownBase, cfg.CooldownMax, log)
	limiter := ratelimit.New(map[models.Category]ratelimit.Budget{
		models.CategorySingle: {Capacity: cfg.SingleRateCapacity, PerMinute: cfg.SingleRatePerMin},
		models.CategoryBulk:   {Capacity: cfg.BulkRateCapacity, PerMinute: cfg.BulkRatePerMin},
	})
	agg := metrics.New(pool)

	archive, err := storage.NewArchive(cfg.ResultsLogPath, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open result archive")
	}
	defer archive.Close()

	var forwarder scheduler.Forwarder
	if cfg.AutoSendResults && cfg.MainAppURL != "" {
		forwarder = dispatcher.New(cfg.MainAppURL, cfg.MainAppAPIKey, log)
	}

	drv := driver.NewHTTP(cfg.DriverURL, log)

	sched := scheduler.New(
		cfg,
		sites,
		drv,
		limiter,
		pool,
		classifier.New(cfg.MaxRetries),
		driver.NewIdentityGenerator(zips),
		agg,
		archive,
		forwarder,
		log,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sched.Start(ctx)
	defer sched.Stop()

	r := mux.NewRouter()
	routes.SetupRoutes(r, cfg, sched, agg)

	server := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("proxies", pool.Size()).
			Int("concurrency", cfg.Concurrency).
			Strs("websites", sched.Sites()).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}
	log.Info().Msg("server exited")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"}
	return zerolog.New(writer).Level(lvl).With().Timestamp().Logger()
}
