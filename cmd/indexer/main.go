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
	"golang.org/x/sync/errgroup"

	"github.com/Porostik/dln-dashboard/internal/chain/rpcpolicy"
	"github.com/Porostik/dln-dashboard/internal/chain/solana/rpc"
	"github.com/Porostik/dln-dashboard/internal/config"
	"github.com/Porostik/dln-dashboard/internal/domain/model"
	"github.com/Porostik/dln-dashboard/internal/indexing"
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

	logger.Info("starting indexer",
		"rpc", cfg.Solana.RPCURL,
		"src_program", cfg.Solana.SrcProgramID,
		"dst_program", cfg.Solana.DstProgramID,
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

	rawTxRepo := postgres.NewRawTxRepo(db)
	stateRepo := postgres.NewIndexerStateRepo(db)
	ingestionRepo := postgres.NewIngestionRepo(db, rawTxRepo, stateRepo)

	policy := rpcpolicy.New(rpcpolicy.Config{
		Classes: map[rpcpolicy.MethodClass]rpcpolicy.ClassConfig{
			rpcpolicy.MethodSignatures: {
				Concurrency: cfg.RPCPolicy.SigConcurrency,
				MinInterval: cfg.RPCPolicy.SigMinInterval,
			},
			rpcpolicy.MethodTransaction: {
				Concurrency: cfg.RPCPolicy.TxConcurrency,
				MinInterval: cfg.RPCPolicy.TxMinInterval,
			},
			rpcpolicy.MethodTransactionBatch: {
				Concurrency: cfg.RPCPolicy.BatchTxConcurrency,
				MinInterval: cfg.RPCPolicy.BatchTxMinInterval,
			},
		},
		MaxAttempts: cfg.RPCPolicy.MaxAttempts,
		BaseDelay:   cfg.RPCPolicy.BaseDelay,
		MaxDelay:    cfg.RPCPolicy.MaxDelay,
	}, logger)
	client := indexing.NewClient(rpc.NewClient(cfg.Solana.RPCURL, logger), policy)

	var sources []*indexing.Source
	for _, programID := range []string{cfg.Solana.SrcProgramID, cfg.Solana.DstProgramID} {
		sources = append(sources,
			indexing.NewSource(indexing.SourceConfig{
				ProgramID:     programID,
				Mode:          model.ModeBackfill,
				BatchSize:     cfg.Indexer.BackfillBatchSize,
				MaxEmptyPages: cfg.Indexer.BackfillMaxEmptyPages,
			}, client, stateRepo, ingestionRepo, logger),
			indexing.NewSource(indexing.SourceConfig{
				ProgramID: programID,
				Mode:      model.ModeForward,
				BatchSize: cfg.Indexer.ForwardBatchSize,
			}, client, stateRepo, ingestionRepo, logger),
		)
	}

	runner := indexing.NewRunner(indexing.RunnerConfig{
		TickInterval: cfg.Indexer.TickInterval,
		IdleInterval: cfg.Indexer.IdleInterval,
	}, sources, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gCtx)
	})
	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("indexer stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("indexer stopped")
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
