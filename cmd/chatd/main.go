// News chat backend server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/newschat/internal/api"
	"github.com/ashureev/newschat/internal/chatws"
	"github.com/ashureev/newschat/internal/config"
	"github.com/ashureev/newschat/internal/health"
	"github.com/ashureev/newschat/internal/middleware"
	"github.com/ashureev/newschat/internal/responder"
	"github.com/ashureev/newschat/internal/session"
	"github.com/ashureev/newschat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		healthcheckMain()
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "store", cfg.StoreDriver, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected")

	// Initialize services.
	sessions := session.NewService(repo, responder.Echo{}, cfg.SessionTTL)
	registry := chatws.NewRegistry()

	// Initialize handlers.
	baseHandler := api.NewHandler(sessions, registry.CloseSession)
	sessionHandler := api.NewSessionHandler(baseHandler)
	healthHandler := api.NewHealthHandler(repo, cfg.HealthCheckTimeout).WithConnections(registry.Len)
	wsHandler := chatws.NewHandler(sessions, registry, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(middleware.Origins(cfg.FrontendURL)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/chat/ws", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,                 // 0 = no timeout for long-lived WebSockets
		IdleTimeout:  120 * time.Second, // 2 minutes for idle connections
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer(repo, health.DefaultCheckInterval, logger)
	healthServer.Register(grpcServer)

	// Start TTL worker.
	session.StartTTLWorker(ctx, repo, cfg.CleanupInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		healthServer.Run(gctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC", "error", err)
			os.Exit(1)
		}
		g.Go(func() error {
			slog.Info("gRPC health listening", "addr", lis.Addr().String())
			return grpcServer.Serve(lis)
		})
	}

	// Wait for shutdown signal or a server failure.
	g.Go(func() error {
		<-gctx.Done()
		stop()

		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return store.NewRedis(connectCtx, cfg.RedisURL)
	default:
		return store.NewSQLite(cfg.DBPath)
	}
}
