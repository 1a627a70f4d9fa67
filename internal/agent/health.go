package agent

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// healthService is the service name reported alongside the empty overall name.
const healthService = "gemstone.testapp"

func (a *Agent) runGRPCHealth(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.GRPCHealthAddr)
	if err != nil {
		return fmt.Errorf("listen grpc health %s: %w", a.cfg.GRPCHealthAddr, err)
	}
	return a.serveGRPCHealth(ctx, ln)
}

func (a *Agent) serveGRPCHealth(ctx context.Context, ln net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, a.health)
	a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	a.health.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("grpc health listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		a.health.Shutdown()
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve grpc health: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Shutdown flips every service to NOT_SERVING so watchers see the drain.
	a.health.Shutdown()
	srv.GracefulStop()
	<-errCh
	return nil
}
