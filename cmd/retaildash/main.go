package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"retaildash/internal/amqp"
	"retaildash/internal/backend"
	"retaildash/internal/cache"
	"retaildash/internal/cli"
	apphttp "retaildash/internal/http"
	"retaildash/internal/log"
	"retaildash/internal/metrics"
)

const (
	warmTimeout     = 2 * time.Minute
	shutdownTimeout = 30 * time.Second
	cleanupInterval = time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("Failed to register metrics", log.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	result, err := backend.NewFactory(logger.Logger).CreateReader(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create transaction reader", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", log.FieldError, err)
			}
		}()
	}

	storeLogger := logger.WithComponent(log.ComponentCache)
	datasets := cache.NewDatasetCache(storeLogger.Logger, cfg.DatasetCacheSize, cfg.DatasetCacheTTL)
	source := datasets.Add(result.Reader)

	warmCtx, cancelWarm := context.WithTimeout(context.Background(), warmTimeout)
	ds, err := datasets.Get(warmCtx, source)
	cancelWarm()
	if err != nil {
		logger.Error("Failed to load transactions", log.FieldSource, source, log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Transactions loaded",
		log.FieldSource, ds.Source,
		log.FieldRows, ds.Len(),
		"skipped", ds.Skipped)

	manager := cache.NewManager(storeLogger.Logger)
	manager.Register(datasets)
	manager.StartCleanup(cleanupInterval)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:            ":" + cfg.Port,
		Source:          source,
		EmptyMatchesAll: cfg.EmptySelectionMatchesAll,
		ReloadPerMinute: cfg.ReloadRatePerMinute,
	}, datasets, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - reload notifications will not be consumed")
	}

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		manager.Stop()
	})

	if amqpClient != nil {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		go func() {
			err := amqpClient.ConsumeDatasetReloaded(ctx, func(msg *amqp.DatasetReloadedMessage) error {
				if msg.Source == source {
					datasets.Invalidate(source)
				} else {
					amqpLogger.Warn("Reload notice for another source, invalidating all",
						log.FieldSource, msg.Source)
					datasets.InvalidateAll()
				}
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				amqpLogger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	logger.Info("Starting retaildash server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldSource, source)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
