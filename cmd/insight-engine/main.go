package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insightstack/insight-engine/internal/api"
	"github.com/insightstack/insight-engine/internal/cache"
	"github.com/insightstack/insight-engine/internal/catalog"
	"github.com/insightstack/insight-engine/internal/config"
	"github.com/insightstack/insight-engine/internal/engine"
	"github.com/insightstack/insight-engine/internal/metrics"
	"github.com/insightstack/insight-engine/internal/models"
	"github.com/insightstack/insight-engine/internal/services"
	"github.com/insightstack/insight-engine/internal/store"
	"github.com/insightstack/insight-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting insight-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NewMemoryProvider()
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout.Std(),
			ReadTimeout:  cfg.Cache.ReadTimeout.Std(),
			WriteTimeout: cfg.Cache.WriteTimeout.Std(),
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, using in-memory cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	observations, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open observation store", slog.String("path", cfg.Store.Path), slog.Any("error", err))
		os.Exit(1)
	}
	defer observations.Close()

	cat := catalog.New()
	declared := make([]models.DataMetric, 0, len(cfg.Metrics))
	for _, mc := range cfg.Metrics {
		declared = append(declared, mc.DataMetric())
	}
	if err := observations.RegisterMetrics(cat, declared); err != nil {
		logger.Error("failed to register metrics catalog", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("metric catalog ready", slog.Int("metrics", len(cfg.Metrics)))

	eng := engine.New(logger, cat, engine.Config{
		MinimumSampleSize:    cfg.Engine.MinimumSampleSize,
		LargeSampleThreshold: cfg.Engine.LargeSampleThreshold,
		LagOffsets:           cfg.Engine.LagOffsets,
		MaxPairWorkers:       cfg.Engine.MaxPairWorkers,
	})

	insightService := services.NewInsightService(logger, cat, eng, cacheProvider, services.Options{
		DefaultScanDays: cfg.Engine.DefaultScanDays,
		ScanTTL:         cfg.Cache.ScanTTL.Std(),
	})

	server, err := api.NewServer(cfg.Server, logger, insightService)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("api server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("api server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout.Std())
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("insight-engine stopped")
}
