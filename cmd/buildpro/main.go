package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/buildpro/pkg/api"
	"github.com/platinummonkey/buildpro/pkg/config"
	"github.com/platinummonkey/buildpro/pkg/jobs"
	"github.com/platinummonkey/buildpro/pkg/migrations"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/storage"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	migrate := flag.Bool("migrate", false, "Apply pending database migrations before serving")
	migrateOnly := flag.Bool("migrate-only", false, "Apply pending database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLoggerWithFormat(cfg.Observability.Level(), cfg.Observability.Format(), os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	// only the log level is applied live; everything else needs a restart
	if err := config.Watch(*configPath, logger, func(next config.Config) {
		logger.SetLevel(next.Observability.Level())
	}); err != nil {
		logger.WithError(err).Warn("config file watch disabled")
	}

	if err := run(cfg, logger, *migrate || *migrateOnly, *migrateOnly); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *observability.Logger, migrate, migrateOnly bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("Database connection established")

	if migrate {
		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			db.Close()
			return err
		}
		logger.WithField("applied", applied).Info("Database migrations complete")
		if migrateOnly {
			return db.Close()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return err
		}
		logger.Info("Redis connection established")
	}

	blobs, err := storage.NewBlobStore(ctx, cfg.Storage, cfg.IsProduction())
	if err != nil {
		closeAll(db, redisClient)
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	logger.WithField("provider", blobs.Provider()).Info("Blob storage initialized")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	srv := api.NewServer(api.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Registry: registry,
		DB:       db,
		Redis:    redisClient,
		Blobs:    blobs,
		Version:  version,
	})

	scheduler := jobs.NewScheduler(logger)
	for _, job := range srv.MaintenanceJobs() {
		if err := scheduler.Add(job); err != nil {
			closeAll(db, redisClient)
			return err
		}
	}
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("scheduler", func(ctx context.Context) error {
		scheduler.Stop(ctx)
		return nil
	})
	shutdown.Register("otel", otelProviders.Shutdown)
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":        httpServer.Addr,
			"environment": cfg.Environment,
			"version":     version,
		}).Info("Starting BuildPro API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return shutdown.WaitForSignal(gctx)
	})
	return g.Wait()
}

func closeAll(db *sql.DB, redisClient *redis.Client) {
	if redisClient != nil {
		redisClient.Close()
	}
	db.Close()
}
