package agent

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/netns"
)

// HealthProber waits for the agent's gRPC health service to report
// SERVING. Connections are dialled from inside the agent's namespace.
type HealthProber struct {
	Timeout time.Duration
}

// WaitReady polls the agent with exponential backoff until it serves or
// the timeout expires.
func (p HealthProber) WaitReady(ctx context.Context, spec nsprov.AgentSpec) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	target := ListenAddr(spec)
	if !spec.Addr.IsValid() {
		target = "127.0.0.1" + target
	}
	conn, err := grpc.NewClient("passthrough:///"+target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(namespaceDialer(spec.Namespace)),
	)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", target, err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	backoff := 25 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond
	var lastErr error
	for {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: spec.Name})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %s", resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last: %v)", ctx.Err(), lastErr)
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// namespaceDialer opens TCP connections from inside the named
// namespace; "" dials from the current one.
func namespaceDialer(ns string) func(context.Context, string) (net.Conn, error) {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		var conn net.Conn
		err := netns.Run(netns.Path(ns), func() error {
			var err error
			conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
			return err
		})
		return conn, err
	}
}
