package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/engine/scorer"
	"github.com/babelindex/babelindex/internal/engine/segmenter"
	"github.com/babelindex/babelindex/internal/indexer"
	"github.com/babelindex/babelindex/internal/reindex"
	"github.com/babelindex/babelindex/internal/search"
	"github.com/babelindex/babelindex/internal/search/cache"
	"github.com/babelindex/babelindex/internal/search/handler"
	pgstore "github.com/babelindex/babelindex/internal/store/postgres"
	"github.com/babelindex/babelindex/internal/vocabadmin"
	"github.com/babelindex/babelindex/pkg/config"
	"github.com/babelindex/babelindex/pkg/health"
	"github.com/babelindex/babelindex/pkg/logger"
	"github.com/babelindex/babelindex/pkg/metrics"
	"github.com/babelindex/babelindex/pkg/middleware"
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
	slog.Info("starting index service", "port", cfg.Server.Port)

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
	slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	var queryCache *cache.QueryCache
	var freq indexer.FrequencyTracker
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching and frequency tracking disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		freq = indexer.NewRedisFrequencyTracker(redisClient)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
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
	sc := scorer.New(store, m)

	publisher := reindex.NewPublisher(cfg.Kafka)
	defer publisher.Close()
	slog.Info("reindex publisher ready", "topic", cfg.Kafka.Topics.ReindexChanges)

	admin := vocabadmin.New(store, prefixCache, publisher, m)
	idx := indexer.New(res, store, store, freq, m)
	searchSvc := search.New(res, sc, store, queryCache, cfg.Search, m)
	h := handler.New(searchSvc, idx, admin, res)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("index service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("index service stopped")
}
