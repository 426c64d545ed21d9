package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faisalantu/tradebridge-systems/libs/health"
	"github.com/faisalantu/tradebridge-systems/libs/httpmiddleware"
	"github.com/faisalantu/tradebridge-systems/libs/logging"
	"github.com/faisalantu/tradebridge-systems/libs/metrics"
	"github.com/faisalantu/tradebridge-systems/libs/trace"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/cache"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/config"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/handlers"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/marketdata"
	"github.com/faisalantu/tradebridge-systems/services/market/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.LogLevel, cfg.App.ServiceName, cfg.App.Env)
	shutdownTracer, err := trace.InitTracer(cfg.App.ServiceName, cfg.App.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.App.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := metrics.NewRegistry()
	marketMetrics := service.NewMetrics(registry)
	ready := health.NewManager(true)

	source, err := buildSource(cfg, logger)
	if err != nil {
		logger.Error("market source init failed", "error", err)
		os.Exit(1)
	}

	snapshots, closeCache, err := buildCache(cfg, ready, logger)
	if err != nil {
		logger.Error("snapshot cache init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = closeCache()
	}()

	markets := service.NewMarketService(source, snapshots, logger, marketMetrics, service.Options{
		Watched: cfg.Market.Watch,
		MaxAge:  2 * cfg.Market.PollInterval,
	})

	pollCtx, pollCancel := context.WithCancel(context.Background())
	defer pollCancel()
	go markets.Poll(pollCtx, cfg.Market.PollInterval)

	router := gin.New()
	httpmiddleware.Standard(router, logger)
	router.Use(trace.Middleware(cfg.App.ServiceName))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.App.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	h := handlers.New(markets, logger, cfg.Market.PollInterval)
	h.StreamOpened = marketMetrics.StreamOpened
	h.Register(router)

	addr := fmt.Sprintf("%s:%d", cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: cfg.App.HTTP.ReadTimeout,
		// streams outlive any write timeout; the handler sets per-frame deadlines
		IdleTimeout: cfg.App.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("market service starting", "addr", addr, "source", cfg.Market.Source)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(server, ready, pollCancel, logger)
}

func buildSource(cfg *config.Config, logger *slog.Logger) (marketdata.Source, error) {
	switch cfg.Market.Source {
	case config.SourceSynthetic:
		if !cfg.App.IsDev() {
			logger.Warn("serving synthetic market data outside dev", "env", cfg.App.Env)
		}
		var rng *rand.Rand
		if cfg.Market.Seed != 0 {
			rng = rand.New(rand.NewPCG(cfg.Market.Seed, cfg.Market.Seed))
		}
		return marketdata.NewSynthetic(rng, nil), nil
	case config.SourceHTTP:
		return marketdata.NewHTTPSource(marketdata.HTTPSourceConfig{
			BaseURL: cfg.Market.BaseURL,
			Timeout: cfg.Market.Timeout,
			Quote:   cfg.Market.Quote,
			Series:  cfg.Market.Series,
		}, &http.Client{})
	}
	return nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
}

func buildCache(cfg *config.Config, ready *health.Manager, logger *slog.Logger) (cache.SnapshotCache, func() error, error) {
	if cfg.Redis.Addr == "" {
		return cache.NewMemoryCache(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if cfg.App.IsDev() {
			logger.Warn("redis snapshot cache unavailable, falling back to memory", "error", err)
			return cache.NewMemoryCache(), func() error { return nil }, nil
		}
		return nil, nil, err
	}

	ready.AddCheck("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return cache.NewRedisCache(client, cfg.Market.CacheTTL, cfg.Redis.Prefix), client.Close, nil
}

func waitForShutdown(server *http.Server, ready *health.Manager, cancel context.CancelFunc, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown started")
	ready.SetReady(false)
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelTimeout()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}
