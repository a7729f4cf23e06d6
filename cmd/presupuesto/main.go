package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"presupuesto/internal/cache"
	"presupuesto/internal/cli"
	"presupuesto/internal/httpapi"
	"presupuesto/internal/log"
	"presupuesto/internal/payments"
	"presupuesto/internal/search"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	st := cli.OpenStore(ctx, logger, cfg)
	defer st.Close()

	// Summary cache: shared Redis when configured, in-process LRU
	// otherwise. A cache failure only costs a store round-trip.
	var summaryCache cache.Cache[payments.SummaryRows]
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis[payments.SummaryRows](ctx, cfg.RedisURL, "summary:", cfg.SummaryCacheTTL)
		if err != nil {
			logger.Error("Failed to connect to Redis", log.FieldError, err)
			os.Exit(1)
		}
		defer redisCache.Close()
		summaryCache = redisCache
		logger.Info("Using Redis summary cache")
	} else {
		summaryCache = cache.NewLRU[payments.SummaryRows](cfg.SummaryCacheLen, cfg.SummaryCacheTTL)
		logger.Info("Using in-process summary cache", "size", cfg.SummaryCacheLen)
	}

	svc := payments.NewService(st, cfg, summaryCache, logger)
	cons := search.NewConsolidator(st, cfg, logger)
	srv := httpapi.NewServer(":"+cfg.Port, svc, cons, cfg, logger)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(sdCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	fields := log.NewFields().WithOperation(log.OpStartup)
	fields["port"] = cfg.Port
	fields["backend"] = cfg.DataBackend
	fields["language"] = cfg.Language
	logger.Info("Starting presupuesto server", fields.ToSlice()...)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
