package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// ErrNotServing is returned by Check when the backend reports anything but
// SERVING.
var ErrNotServing = errors.New("service not serving")

// Probe checks a backend's gRPC health endpoint.
type Probe struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

// NewProbe connects to addr and waits until the connection is ready or ctx
// ends. Extra dial options are appended after the insecure transport.
func NewProbe(ctx context.Context, addr string, logger *slog.Logger, opts ...grpc.DialOption) (*Probe, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create health client for %s: %w", addr, err)
	}

	if err := waitForReady(ctx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("health endpoint at %s not ready: %w", addr, err)
	}

	return &Probe{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
		addr:   addr,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Check returns nil when service reports SERVING.
func (p *Probe) Check(ctx context.Context, service string) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s is %s", ErrNotServing, p.addr, resp.GetStatus())
	}
	return nil
}

// Close closes the gRPC connection.
func (p *Probe) Close() {
	if err := p.conn.Close(); err != nil {
		p.logger.Warn("failed to close gRPC connection", "error", err)
	}
}
