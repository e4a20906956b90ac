package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/copy-catalog/internal/app"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/ingest"
	"github.com/joseph-ayodele/copy-catalog/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if cfg.Ingest.WatchDir != "" {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.WatchDir},
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start inbox watcher", "dir", cfg.Ingest.WatchDir, "error", err)
			os.Exit(1)
		}
		go ingest.Feed(ctx, events, a.Ingestor, a.Queue, logger)
		go func() {
			for range errs {
				// already logged by the watcher
			}
		}()
		logger.Info("watching inbox", "dir", cfg.Ingest.WatchDir)
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer, health := server.NewGRPCServer(a.Service(), logger)

	logger.Info("catalogd listening", "addr", addr, "db_driver", cfg.Database.Driver, "storage", cfg.Storage.Backend)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	health.Shutdown()
	grpcServer.GracefulStop()
}
