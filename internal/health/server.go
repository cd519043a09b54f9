// Package health exposes backend readiness over the standard gRPC health
// protocol and provides a client probe for it.
package health

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatService is the service name reported alongside the overall ("") status.
const ChatService = "newschat.Chat"

// DefaultCheckInterval is how often the store is pinged.
const DefaultCheckInterval = 10 * time.Second

// Pinger is a dependency whose reachability decides serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server tracks store reachability and publishes it as gRPC health status.
type Server struct {
	hs       *health.Server
	store    Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// NewServer creates a health server for store. A non-positive interval uses
// DefaultCheckInterval.
func NewServer(store Pinger, interval time.Duration, logger *slog.Logger) *Server {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		hs:       health.NewServer(),
		store:    store,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to gs.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.hs)
}

// Run checks the store immediately and then every interval until ctx is
// cancelled, at which point all services report NOT_SERVING.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.check(ctx)
	for {
		select {
		case <-ticker.C:
			s.check(ctx)
		case <-ctx.Done():
			s.hs.Shutdown()
			return
		}
	}
}

func (s *Server) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Ping(pingCtx); err != nil {
		s.logger.Warn("Store unreachable, reporting NOT_SERVING", "error", err)
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", status)
	s.hs.SetServingStatus(ChatService, status)
}
