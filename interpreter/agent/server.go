package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/frobware/go-nsprov/netns"
)

// Listen opens a TCP listener inside the named namespace. The socket
// stays in that namespace after the call returns.
func Listen(namespace, addr string) (net.Listener, error) {
	var lis net.Listener
	err := netns.Run(netns.Path(namespace), func() error {
		var err error
		lis, err = net.Listen("tcp", addr)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listen on %s in netns %q: %w", addr, namespace, err)
	}
	return lis, nil
}

// Serve runs the control endpoint of agent name on lis until ctx is
// cancelled. The health service reports SERVING both overall and for
// name.
func Serve(ctx context.Context, lis net.Listener, name string, logger *slog.Logger) error {
	logger = logger.With("component", "agent", "agent", name)

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(loggingInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)

	errChan := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "agent gRPC server listening", "addr", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "shutting down agent")
		hs.Shutdown()
		grpcServer.GracefulStop()
		return nil
	case err := <-errChan:
		return err
	}
}

// loggingInterceptor logs failed requests.
func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.ErrorContext(ctx, "grpc error", "method", info.FullMethod, "error", err)
		} else {
			logger.DebugContext(ctx, "grpc", "method", info.FullMethod)
		}
		return resp, err
	}
}
