package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ashureev/newschat/internal/config"
	"github.com/ashureev/newschat/internal/health"
	"github.com/joho/godotenv"
)

const healthcheckTimeout = 5 * time.Second

// healthcheckMain probes the local gRPC health endpoint and exits non-zero
// unless the chat service is serving. Used as a container health check:
//
//	chatd healthcheck
func healthcheckMain() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.GRPCPort == "" {
		logger.Error("GRPC_PORT is not set, nothing to probe")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
	defer cancel()

	if err := runHealthcheck(ctx, net.JoinHostPort("127.0.0.1", cfg.GRPCPort), logger); err != nil {
		logger.Error("Health check failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

func runHealthcheck(ctx context.Context, addr string, logger *slog.Logger) error {
	probe, err := health.NewProbe(ctx, addr, logger)
	if err != nil {
		return err
	}
	defer probe.Close()

	if err := probe.Check(ctx, health.ChatService); err != nil {
		return fmt.Errorf("check %s: %w", health.ChatService, err)
	}
	return nil
}
