package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Porostik/dln-dashboard/internal/aggregation"
	"github.com/Porostik/dln-dashboard/internal/config"
	"github.com/Porostik/dln-dashboard/internal/parser"
	"github.com/Porostik/dln-dashboard/internal/price"
	"github.com/Porostik/dln-dashboard/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting aggregator",
		"workers", cfg.Aggregator.WorkersCount,
		"batch_size", cfg.Aggregator.JobsBatchSize,
	)

	db, err := postgres.New(postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	rawTxRepo := postgres.NewRawTxRepo(db)
	jobRepo := postgres.NewJobRepo(db)
	eventRepo := postgres.NewOrderEventRepo(db)
	statRepo := postgres.NewDayStatRepo(db)

	txParser := parser.New(cfg.Solana.SrcProgramID, cfg.Solana.DstProgramID, cfg.Solana.DstChainID)
	oracle := price.NewOracle(
		price.NewJupiterClient(cfg.Jupiter.URL, cfg.Jupiter.APIKey),
		price.NewRedisCache(redisClient),
	)
	processor := aggregation.NewProcessor(rawTxRepo, txParser, oracle)

	pool := aggregation.NewPool(
		cfg.Aggregator.WorkersCount,
		aggregation.WorkerConfig{
			BatchSize:    cfg.Aggregator.JobsBatchSize,
			LockFor:      cfg.Aggregator.JobsLockFor,
			Concurrency:  cfg.Aggregator.JobsConcurrency,
			TickInterval: cfg.Aggregator.TickInterval,
			BaseDelay:    cfg.Aggregator.JobsBaseDelay,
			MaxDelay:     cfg.Aggregator.JobsMaxDelay,
			MaxAttempts:  cfg.Aggregator.JobsMaxAttempts,
		},
		db, jobRepo, eventRepo, statRepo, processor, logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gCtx)
	})
	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("aggregator stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("aggregator stopped")
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
