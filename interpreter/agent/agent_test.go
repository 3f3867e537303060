package agent_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-nsprov"
	"github.com/frobware/go-nsprov/interpreter"
	"github.com/frobware/go-nsprov/interpreter/agent"
	"github.com/frobware/go-nsprov/interpreter/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLauncher struct {
	nextPID  int
	launched []string
	stopped  []int
	failWith error
}

func (l *fakeLauncher) Launch(_ context.Context, spec nsprov.AgentSpec) (int, error) {
	if l.failWith != nil {
		return 0, l.failWith
	}
	l.nextPID++
	l.launched = append(l.launched, spec.Name)
	return l.nextPID, nil
}

func (l *fakeLauncher) Stop(_ context.Context, pid int) error {
	l.stopped = append(l.stopped, pid)
	return nil
}

type fakeProber struct{ err error }

func (p fakeProber) WaitReady(context.Context, nsprov.AgentSpec) error { return p.err }

type fakeNetwork struct {
	released []string
}

func (n *fakeNetwork) DefaultRouteInterface(_ context.Context, agent string) (string, error) {
	if agent == "Agt_A" {
		return "eth0", nil
	}
	return "", nsprov.ErrNotFound{What: "default route", Name: agent}
}

func (n *fakeNetwork) ReleaseNamespace(_ context.Context, ns string) error {
	n.released = append(n.released, ns)
	return nil
}

type fixture struct {
	store    interpreter.Store
	launcher *fakeLauncher
	network  *fakeNetwork
	registry *agent.Registry
}

func newFixture(t *testing.T, prober agent.Prober) *fixture {
	t.Helper()
	s, err := sqlite.NewInMemory(context.Background(), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{store: s, launcher: &fakeLauncher{nextPID: 100}, network: &fakeNetwork{}}
	f.registry = agent.NewRegistry(s, f.network, f.launcher, prober, testLogger())
	return f
}

func nsSpec() nsprov.AgentSpec {
	return nsprov.AgentSpec{
		Name:      "Agt_A_ns",
		Type:      "linux",
		Host:      "iut",
		Namespace: "test_ns",
		Addr:      netip.MustParseAddr("10.254.0.2"),
		Port:      23571,
	}
}

func TestAddAgent_LaunchesAndRecords(t *testing.T) {
	f := newFixture(t, fakeProber{})
	ctx := context.Background()

	require.NoError(t, f.registry.AddAgent(ctx, nsSpec()))
	a, err := f.store.GetAgent(ctx, "Agt_A_ns")
	require.NoError(t, err)
	assert.Equal(t, 101, a.PID)
	assert.False(t, a.Local)

	assert.Error(t, f.registry.AddAgent(ctx, nsSpec()), "duplicate registration")
	assert.Equal(t, []string{"Agt_A_ns"}, f.launcher.launched)
}

func TestAddAgent_NotReadyStopsProcess(t *testing.T) {
	f := newFixture(t, fakeProber{err: errors.New("deadline exceeded")})
	ctx := context.Background()

	err := f.registry.AddAgent(ctx, nsSpec())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
	assert.Equal(t, []int{101}, f.launcher.stopped)

	_, err = f.store.GetAgent(ctx, "Agt_A_ns")
	assert.Error(t, err, "an agent that never became ready is not recorded")
}

func TestDeleteAgent(t *testing.T) {
	f := newFixture(t, fakeProber{})
	ctx := context.Background()

	err := f.registry.DeleteAgent(ctx, "Agt_A_ns")
	var nf nsprov.ErrNotFound
	require.True(t, errors.As(err, &nf))

	require.NoError(t, f.registry.AddAgent(ctx, nsSpec()))
	require.NoError(t, f.registry.EnsureLocal(ctx, "Agt_A", "linux", "iut"))

	require.NoError(t, f.registry.DeleteAgent(ctx, "Agt_A_ns"))
	require.NoError(t, f.registry.DeleteAgent(ctx, "Agt_A"))
	assert.Equal(t, []int{101}, f.launcher.stopped, "local agents are never signalled")
}

func TestUnbind_ReleasesNamespaceWithLastBinding(t *testing.T) {
	f := newFixture(t, fakeProber{})
	ctx := context.Background()

	second := nsSpec()
	second.Name = "Agt_B_ns"
	require.NoError(t, f.registry.AddAgent(ctx, nsSpec()))
	require.NoError(t, f.registry.AddAgent(ctx, second))
	require.NoError(t, f.registry.BindNamespaceHost(ctx, "iut", "test_ns", "Agt_A_ns"))
	require.NoError(t, f.registry.BindNamespaceHost(ctx, "iut", "test_ns", "Agt_B_ns"))

	require.NoError(t, f.registry.UnbindNamespaceHost(ctx, "Agt_A_ns"))
	assert.Empty(t, f.network.released)

	require.NoError(t, f.registry.UnbindNamespaceHost(ctx, "Agt_B_ns"))
	assert.Equal(t, []string{"test_ns"}, f.network.released)

	err := f.registry.UnbindNamespaceHost(ctx, "Agt_B_ns")
	var nf nsprov.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestBind_RequiresRegisteredAgent(t *testing.T) {
	f := newFixture(t, fakeProber{})
	err := f.registry.BindNamespaceHost(context.Background(), "iut", "test_ns", "ghost")
	var nf nsprov.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestEnsureLocal_KeepsExistingRecord(t *testing.T) {
	f := newFixture(t, fakeProber{})
	ctx := context.Background()

	require.NoError(t, f.registry.EnsureLocal(ctx, "Agt_A", "linux", "iut"))
	require.NoError(t, f.registry.EnsureLocal(ctx, "Agt_A", "other", "elsewhere"))
	a, err := f.store.GetAgent(ctx, "Agt_A")
	require.NoError(t, err)
	assert.True(t, a.Local)
	assert.Equal(t, "linux", a.Type)

	ifname, err := f.registry.DefaultRouteInterface(ctx, "Agt_A")
	require.NoError(t, err)
	assert.Equal(t, "eth0", ifname)
}

func TestServeAndProbe(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- agent.Serve(ctx, lis, "Agt_A_ns", testLogger()) }()

	spec := nsprov.AgentSpec{Name: "Agt_A_ns", Addr: netip.MustParseAddr("127.0.0.1"), Port: uint16(port)}
	require.NoError(t, agent.HealthProber{Timeout: 5 * time.Second}.WaitReady(context.Background(), spec))

	other := spec
	other.Name = "unknown"
	err = agent.HealthProber{Timeout: 200 * time.Millisecond}.WaitReady(context.Background(), other)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "an unknown service never reports SERVING")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServeArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"agent", "serve", "--name", "Agt_A_ns", "--netns", "test_ns", "--listen", "10.254.0.2:23571"},
		agent.ServeArgs(nsSpec()))

	spec := nsSpec()
	spec.Addr = netip.Addr{}
	assert.Equal(t, ":23571", agent.ListenAddr(spec))
	assert.Equal(t, fmt.Sprintf(":%d", 0), agent.ListenAddr(nsprov.AgentSpec{}))
}
