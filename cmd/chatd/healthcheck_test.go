package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/newschat/internal/health"
	"google.golang.org/grpc"
)

type switchPinger struct {
	down atomic.Bool
}

func (p *switchPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("store down")
	}
	return nil
}

func startHealthServer(t *testing.T, pinger health.Pinger) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gs := grpc.NewServer()
	hs := health.NewServer(pinger, 10*time.Millisecond, logger)
	hs.Register(gs)

	ctx, cancel := context.WithCancel(context.Background())
	go hs.Run(ctx)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(func() {
		cancel()
		gs.Stop()
	})
	return lis.Addr().String()
}

func healthcheckEventually(t *testing.T, addr string, wantOK bool) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deadline := time.Now().Add(3 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err = runHealthcheck(ctx, addr, logger)
		cancel()
		if (err == nil) == wantOK {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("healthcheck never reached ok=%v, last error: %v", wantOK, err)
}

func TestHealthcheckServing(t *testing.T) {
	t.Parallel()

	addr := startHealthServer(t, &switchPinger{})
	healthcheckEventually(t, addr, true)
}

func TestHealthcheckFailsWhenStoreDown(t *testing.T) {
	t.Parallel()

	pinger := &switchPinger{}
	pinger.down.Store(true)
	addr := startHealthServer(t, pinger)
	healthcheckEventually(t, addr, false)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runHealthcheck(ctx, addr, logger); !errors.Is(err, health.ErrNotServing) {
		t.Fatalf("expected ErrNotServing, got %v", err)
	}
}

func TestHealthcheckFailsWithoutServer(t *testing.T) {
	t.Parallel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := runHealthcheck(ctx, addr, logger); err == nil {
		t.Fatal("expected failure with no server listening")
	}
}
