package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"txagg/internal/amqp"
	"txagg/internal/cache"
	"txagg/internal/categorize"
	"txagg/internal/cli"
	"txagg/internal/config"
	apphttp "txagg/internal/http"
	"txagg/internal/log"
	"txagg/internal/query"
	"txagg/internal/services"
	"txagg/internal/storage"
	"txagg/internal/worker"
)

const (
	shutdownTimeout   = 30 * time.Second
	categoryCacheTTL  = 5 * time.Minute
	cacheCleanupEvery = time.Minute
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	if err := run(cfg, logger); err != nil {
		logger.Error("txagg stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("txagg stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := cli.SignalContext()
	defer stop()

	store, closeStore, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.AutoSeed {
		// A failed seed leaves the service usable with an empty rule set.
		if _, err := services.NewSeeder(store, logger).Seed(ctx); err != nil {
			logger.Error("Seeding failed", log.FieldOperation, log.OpSeed, log.FieldError, err)
		}
	}

	engine := categorize.NewStoreCategorizer(store, cfg.RuleRefreshInterval, logger)

	var notifier worker.Notifier
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cli.AMQPConfig(cfg), logger)
		if err != nil {
			logger.Warn("AMQP unavailable, category change events disabled", log.FieldError, err)
		} else {
			defer client.Close()
			notifier = client
			logger.Info("Publishing category changes", "queue", cfg.AMQPEventsQueue)
		}
	}

	reconciler := worker.New(store, engine, notifier, worker.Config{
		Interval:     cfg.ReconcileInterval,
		ErrorBackoff: cfg.ReconcileBackoff,
		InitialDelay: cfg.ReconcileInitialDelay,
		BatchSize:    cfg.ReconcileBatchSize,
	}, logger)

	queries := query.NewService(store, categoryCacheTTL, logger)
	caches := cache.NewManager(logger)
	caches.Register(queries.CategoryCache())

	checks := []apphttp.ReadinessCheck{
		{Name: "worker", Check: func(context.Context) error { return reconciler.Ready() }},
	}
	if p, ok := store.(storage.Pinger); ok {
		checks = append(checks, apphttp.ReadinessCheck{Name: "store", Check: p.Ping})
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Queries:            queries,
		Checks:             checks,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting txagg server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return reconciler.Run(gctx)
	})

	g.Go(func() error {
		return caches.Run(gctx, cacheCleanupEvery)
	})

	if cfg.ConsumeInProcess() {
		// A separate connection keeps publisher redials from cutting the
		// consumer's channel.
		consumer, err := amqp.NewClient(cli.AMQPConfig(cfg), logger)
		if err != nil {
			logger.Warn("AMQP unavailable, ingest queue not consumed", log.FieldError, err)
		} else {
			defer consumer.Close()
			ingestor := services.NewIngestor(store, engine, logger)
			g.Go(func() error {
				logger.Info("Consuming ingest queue", "queue", cfg.AMQPIngestQueue)
				err := consumer.ConsumeIngest(gctx, cli.IngestHandler(ingestor, logger))
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
