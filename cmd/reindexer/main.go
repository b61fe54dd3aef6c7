package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/engine/segmenter"
	"github.com/babelindex/babelindex/internal/indexer"
	"github.com/babelindex/babelindex/internal/reindex"
	pgstore "github.com/babelindex/babelindex/internal/store/postgres"
	"github.com/babelindex/babelindex/pkg/config"
	"github.com/babelindex/babelindex/pkg/logger"
	"github.com/babelindex/babelindex/pkg/metrics"
	pkgpostgres "github.com/babelindex/babelindex/pkg/postgres"
	pkgredis "github.com/babelindex/babelindex/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting reindex worker", "batch_size", cfg.Reindex.BatchSize)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(ctx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	pgClient, err := pkgpostgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()
	store := pgstore.New(pgClient)

	var freq indexer.FrequencyTracker
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, frequency tracking disabled", "error", err)
	} else {
		defer redisClient.Close()
		freq = indexer.NewRedisFrequencyTracker(redisClient)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prefixCache := prefixcache.New(store, cfg.Engine.PrefixLen, m)
	seg := segmenter.New(prefixCache, segmenter.Config{
		MinFirstPartLen: cfg.Engine.MinFirstPartLen,
		MinPartLen:      cfg.Engine.MinPartLen,
		MaxParts:        cfg.Engine.MaxParts,
	}, m)
	res := resolver.New(store, prefixCache, seg, m)
	idx := indexer.New(res, store, store, freq, m)
	worker := reindex.NewWorker(store, store, idx, cfg.Reindex.BatchSize, m)

	slog.Info("reindex worker ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.ReindexChanges,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := worker.Run(ctx, cfg.Kafka); err != nil && ctx.Err() == nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}

	slog.Info("reindex worker stopped")
}
