package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/pricescout/internal/api"
	"github.com/jonesrussell/pricescout/internal/config"
	"github.com/jonesrussell/pricescout/internal/fetch"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/metrics"
	"github.com/jonesrussell/pricescout/internal/persist"
	"github.com/jonesrussell/pricescout/internal/scraper"
	"github.com/jonesrussell/pricescout/internal/search"
	"github.com/jonesrussell/pricescout/internal/stream"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return runServe(cmd.Context(), cfg, log)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	hub := stream.NewHub(log, cfg.Search.ClientBufferSize)
	registry := search.NewRegistry(cfg.Search.Retention, hub, log)
	registry.Start(ctx)

	scrapers, err := scraper.DefaultRegistry().BuildAll(cfg.Vendors, log,
		fetch.WithRetryObserver(m.FetchRetried))
	if err != nil {
		return fmt.Errorf("building scrapers: %w", err)
	}
	log.Info("scrapers ready", logger.Int("vendors", len(scrapers)))

	var archiver search.Archiver
	if cfg.Database.Enabled {
		store, err := persist.NewPostgresStore(ctx, cfg.Database.DSN(), log)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() { _ = store.Close() }()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		pool := persist.NewPool(persist.Config{
			Workers:     cfg.Persistence.Workers,
			QueueSize:   cfg.Persistence.QueueSize,
			SaveTimeout: cfg.Persistence.SaveTimeout,
		}, store, log)
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := pool.Stop(stopCtx); err != nil {
				log.Warn("persistence pool did not drain", logger.Error(err))
			}
		}()
		archiver = pool
		log.Info("background persistence enabled",
			logger.Int("workers", cfg.Persistence.Workers),
			logger.Int("queue_size", cfg.Persistence.QueueSize))
	} else {
		log.Info("background persistence disabled")
	}

	orch := search.NewOrchestrator(cfg.Search, scrapers, hub, registry, archiver, m, log)

	srv := api.NewServer(cfg.Server, api.Deps{
		Orchestrator: orch,
		Registry:     registry,
		Hub:          hub,
		Vendors:      cfg.Vendors,
		Gatherer:     promReg,
		Heartbeat:    cfg.Search.HeartbeatInterval,
	}, log)

	return srv.Run(ctx)
}
